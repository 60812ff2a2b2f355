package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-secret-friend/internal/domain"
)

// EventRepo stores events with their draw pairs embedded in the same item,
// so the pairs and the draw latch are always written together.
type EventRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEventRepo(client *dynamodb.Client, tableName string) *EventRepo {
	return &EventRepo{client: client, tableName: tableName}
}

func (r *EventRepo) Put(ctx context.Context, e *domain.Event) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	})
	if _, ok := isConditionFailed(err); ok {
		return fmt.Errorf("event %s exists: %w", e.EventID, domain.ErrConflict)
	}
	return err
}

func (r *EventRepo) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEventID, eventID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	var e domain.Event
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByOrganizer returns the organizer's events, newest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, identity string) ([]domain.Event, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexOrganizer),
		KeyConditionExpression: aws.String("organizer_identity = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":o": &types.AttributeValueMemberS{Value: identity},
		},
		ScanIndexForward: aws.Bool(false),
	})
	var events []domain.Event
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Event
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	return events, nil
}

// CommitDraw flips the draw latch and stores the pairs in one conditional
// UpdateItem. The condition also pins the roster version the pairs were
// derived from.
func (r *EventRepo) CommitDraw(ctx context.Context, eventID string, rosterVersion int64, pairs []domain.DrawPair, drawDate time.Time) error {
	pairsAV, err := attributevalue.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("marshal pairs: %w", err)
	}
	dateAV, err := attributevalue.Marshal(drawDate)
	if err != nil {
		return fmt.Errorf("marshal draw date: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldEventID, eventID),
		UpdateExpression:    aws.String("SET #dp = :t, #dd = :d, #pairs = :p, #ua = :d"),
		ConditionExpression: aws.String("attribute_exists(#id) AND #dp = :f AND #rv = :v"),
		ExpressionAttributeNames: map[string]string{
			"#id":    fieldEventID,
			"#dp":    fieldDrawPerformed,
			"#dd":    fieldDrawDate,
			"#pairs": fieldPairs,
			"#ua":    fieldUpdatedAt,
			"#rv":    fieldRosterVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":d": dateAV,
			":p": pairsAV,
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(rosterVersion, 10)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := isConditionFailed(err); ok {
		return drawConflict(eventID, ccf.Item)
	}
	return err
}

// Update rewrites the descriptive fields of an event while its draw latch is unset.
func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldTitle:       e.Title,
		fieldDescription: e.Description,
		fieldMinValue:    e.MinValue,
		fieldMaxValue:    e.MaxValue,
		fieldEventDate:   e.Date,
		fieldUpdatedAt:   e.UpdatedAt,
	})
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldEventID
	ue.Names["#dp"] = fieldDrawPerformed
	ue.Values[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldEventID, e.EventID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("attribute_exists(#id) AND #dp = :f"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := isConditionFailed(err); ok {
		if ccf.Item == nil {
			return fmt.Errorf("event not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("event %s: %w", e.EventID, domain.ErrEventLocked)
	}
	return err
}

// Delete removes the event item and returns it as it was, including the
// participant ids the caller still has to delete.
func (r *EventRepo) Delete(ctx context.Context, eventID string) (*domain.Event, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldEventID, eventID),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldEventID},
		ReturnValues:             types.ReturnValueAllOld,
	})
	if _, ok := isConditionFailed(err); ok {
		return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e domain.Event
	if err := attributevalue.UnmarshalMap(out.Attributes, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// drawConflict explains a failed draw commit from the item as it was.
func drawConflict(eventID string, old map[string]types.AttributeValue) error {
	switch {
	case old == nil:
		return fmt.Errorf("event not found: %w", domain.ErrNotFound)
	case boolAttr(old, fieldDrawPerformed):
		return fmt.Errorf("event %s: %w", eventID, domain.ErrDrawAlreadyPerformed)
	default:
		return fmt.Errorf("roster of event %s changed: %w", eventID, domain.ErrConcurrentModification)
	}
}
