package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-secret-friend/internal/domain"
)

// ttlGrace keeps expired codes around long enough to answer "expired" rather
// than "not found" before DynamoDB's TTL sweeper removes them.
const ttlGrace = time.Hour

// CodeRepo stores one verification code per slot.
// PK: code_key ("identifier#channel#purpose"). Writes are conditional on the
// stored revision, which makes every state transition a compare-and-swap.
type CodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCodeRepo(client *dynamodb.Client, tableName string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName}
}

func (r *CodeRepo) Get(ctx context.Context, key domain.CodeKey) (*domain.VerificationCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldCodeKey, key.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var v domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *CodeRepo) CompareAndSwap(ctx context.Context, prevRevision string, next *domain.VerificationCode) error {
	item, err := codeItem(next)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ExpressionAttributeNames: map[string]string{"#k": fieldCodeKey},
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
	}
	if prevRevision != "" {
		input.ExpressionAttributeNames = map[string]string{"#rev": fieldRevision}
		input.ConditionExpression = aws.String("#rev = :rev")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberS{Value: prevRevision},
		}
	}
	if _, err := r.client.PutItem(ctx, input); err != nil {
		if _, ok := isConditionFailed(err); ok {
			return fmt.Errorf("code %s changed: %w", next.Key(), domain.ErrConcurrentModification)
		}
		return err
	}
	return nil
}

// PurgeStale deletes consumed and expired codes. Each delete is conditional
// on the revision seen by the scan so a concurrent reissue survives.
func (r *CodeRepo) PurgeStale(ctx context.Context, now time.Time) (int, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		ProjectionExpression: aws.String("#k, #rev, #consumed, expires_at"),
		FilterExpression:     aws.String("#consumed = :t OR expires_at < :now"),
		ExpressionAttributeNames: map[string]string{
			"#k":        fieldCodeKey,
			"#rev":      fieldRevision,
			"#consumed": fieldConsumed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	deleted := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan stale codes: %w", err)
		}
		for _, item := range page.Items {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(r.tableName),
				Key:                       map[string]types.AttributeValue{fieldCodeKey: item[fieldCodeKey]},
				ConditionExpression:       aws.String("#rev = :rev"),
				ExpressionAttributeNames:  map[string]string{"#rev": fieldRevision},
				ExpressionAttributeValues: map[string]types.AttributeValue{":rev": item[fieldRevision]},
			})
			if _, ok := isConditionFailed(err); ok {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("delete stale code: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// codeItem adds the partition key and the TTL attribute to the marshalled code.
func codeItem(v *domain.VerificationCode) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal verification code: %w", err)
	}
	exp := v.ExpiresAt.UTC()
	item[fieldCodeKey] = &types.AttributeValueMemberS{Value: v.Key().String()}
	// Fixed-width UTC so the purge scan can compare expiries as strings.
	item["expires_at"] = &types.AttributeValueMemberS{Value: exp.Format(time.RFC3339)}
	item[fieldTTL] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", exp.Add(ttlGrace).Unix())}
	return item, nil
}
