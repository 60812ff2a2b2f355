package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-secret-friend/internal/domain"
)

// ParticipantRepo writes every roster change in a transaction together with
// a roster_version bump on the event that is conditional on the draw latch.
// The event item also carries the set of participant ids, so the roster can
// be read without an eventually consistent index.
type ParticipantRepo struct {
	client      *dynamodb.Client
	tableName   string
	eventsTable string
}

func NewParticipantRepo(client *dynamodb.Client, tableName, eventsTable string) *ParticipantRepo {
	return &ParticipantRepo{client: client, tableName: tableName, eventsTable: eventsTable}
}

func (r *ParticipantRepo) Get(ctx context.Context, participantID string) (*domain.Participant, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldParticipantID, participantID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("participant not found: %w", domain.ErrNotFound)
	}
	var p domain.Participant
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByEvent reads the roster ids from the event item and then the
// participants themselves, both strongly consistent. Any roster write made
// after the caller read the event's roster_version bumps it again, so a draw
// commit based on this list fails its version condition instead of using a
// stale roster.
func (r *ParticipantRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.Participant, error) {
	out, err := r.client.GetItem(ctx, rosterIDsInput(r.eventsTable, eventID))
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	var ids []string
	if av, ok := out.Item[fieldParticipantIDs]; ok {
		if err := attributevalue.Unmarshal(av, &ids); err != nil {
			return nil, fmt.Errorf("unmarshal roster ids: %w", err)
		}
	}

	participants := make([]domain.Participant, 0, len(ids))
	for _, chunk := range chunks(ids, maxBatchGet) {
		items, err := r.batchGet(ctx, chunk)
		if err != nil {
			return nil, err
		}
		var batch []domain.Participant
		if err := attributevalue.UnmarshalListOfMaps(items, &batch); err != nil {
			return nil, err
		}
		participants = append(participants, batch...)
	}
	if len(participants) != len(ids) {
		return nil, fmt.Errorf("roster of event %s lists %d participants, found %d: %w", eventID, len(ids), len(participants), domain.ErrConcurrentModification)
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ParticipantID < participants[j].ParticipantID })
	return participants, nil
}

func (r *ParticipantRepo) batchGet(ctx context.Context, ids []string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	input := batchGetInput(r.tableName, ids)
	for attempt := 0; len(input.RequestItems) > 0; attempt++ {
		if attempt == maxBatchRetries {
			return nil, fmt.Errorf("batch get participants: unprocessed keys after %d attempts", attempt)
		}
		out, err := r.client.BatchGetItem(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Responses[r.tableName]...)
		input = &dynamodb.BatchGetItemInput{RequestItems: out.UnprocessedKeys}
	}
	return items, nil
}

func (r *ParticipantRepo) Add(ctx context.Context, p *domain.Participant) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	return r.rosterWrite(ctx, p.EventID, rosterAdd(p.ParticipantID), types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(participant_id)"),
		},
	})
}

func (r *ParticipantRepo) Remove(ctx context.Context, eventID, participantID string) error {
	return r.rosterWrite(ctx, eventID, rosterRemove(participantID), types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldParticipantID, participantID),
			ConditionExpression:       aws.String("event_id = :e"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: eventID}},
		},
	})
}

// DeleteAll removes the participants of an already deleted event.
func (r *ParticipantRepo) DeleteAll(ctx context.Context, eventID string, participantIDs []string) error {
	for _, chunk := range chunks(participantIDs, maxBatchWrite) {
		reqs := make([]types.WriteRequest, len(chunk))
		for i, id := range chunk {
			reqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: strKey(fieldParticipantID, id)}}
		}
		pending := map[string][]types.WriteRequest{r.tableName: reqs}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return fmt.Errorf("delete participants of %s: unprocessed items after %d attempts", eventID, attempt)
			}
			out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func (r *ParticipantRepo) SetConfirmed(ctx context.Context, eventID, participantID string, confirmed bool, phone *string) error {
	updates := map[string]interface{}{
		fieldConfirmed: confirmed,
		fieldUpdatedAt: time.Now().UTC(),
	}
	if phone != nil {
		updates[fieldWhatsAppNumber] = *phone
	}
	upd, err := r.memberUpdate(eventID, participantID, updates)
	if err != nil {
		return err
	}
	return r.rosterWrite(ctx, eventID, rosterChange{}, types.TransactWriteItem{Update: upd})
}

// UpdateGiftSuggestion is not a roster change and is allowed after the draw.
func (r *ParticipantRepo) UpdateGiftSuggestion(ctx context.Context, eventID, participantID, suggestion string) error {
	upd, err := r.memberUpdate(eventID, participantID, map[string]interface{}{
		fieldGiftSuggestion: suggestion,
		fieldUpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 upd.TableName,
		Key:                       upd.Key,
		UpdateExpression:          upd.UpdateExpression,
		ConditionExpression:       upd.ConditionExpression,
		ExpressionAttributeNames:  upd.ExpressionAttributeNames,
		ExpressionAttributeValues: upd.ExpressionAttributeValues,
	})
	if _, ok := isConditionFailed(err); ok {
		return fmt.Errorf("participant not found: %w", domain.ErrNotFound)
	}
	return err
}

// memberUpdate builds an update on a participant that only applies while it
// still belongs to eventID.
func (r *ParticipantRepo) memberUpdate(eventID, participantID string, updates map[string]interface{}) (*types.Update, error) {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Values[":e"] = &types.AttributeValueMemberS{Value: eventID}
	return &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldParticipantID, participantID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("event_id = :e"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}, nil
}

// rosterChange is the edit to the event's participant id set that goes with a roster write.
type rosterChange struct {
	op string // "ADD" | "DELETE" | ""
	id string
}

func rosterAdd(id string) rosterChange    { return rosterChange{op: "ADD", id: id} }
func rosterRemove(id string) rosterChange { return rosterChange{op: "DELETE", id: id} }

// rosterWrite runs item in a transaction with a roster_version bump on the
// event, conditional on the event existing and its draw latch being unset.
func (r *ParticipantRepo) rosterWrite(ctx context.Context, eventID string, change rosterChange, item types.TransactWriteItem) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: rosterBump(r.eventsTable, eventID, change, time.Now().UTC())},
			item,
		},
	})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return rosterConflict(eventID, tce.CancellationReasons)
	}
	return err
}

func rosterBump(eventsTable, eventID string, change rosterChange, now time.Time) *types.Update {
	names := map[string]string{
		"#id": fieldEventID,
		"#rv": fieldRosterVersion,
		"#dp": fieldDrawPerformed,
		"#ua": fieldUpdatedAt,
	}
	values := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":f":    &types.AttributeValueMemberBOOL{Value: false},
		":now":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	expr := "SET #rv = if_not_exists(#rv, :zero) + :one, #ua = :now"
	if change.op != "" {
		names["#ids"] = fieldParticipantIDs
		values[":pid"] = &types.AttributeValueMemberSS{Value: []string{change.id}}
		expr += " " + change.op + " #ids :pid"
	}
	return &types.Update{
		TableName:                           aws.String(eventsTable),
		Key:                                 strKey(fieldEventID, eventID),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String("attribute_exists(#id) AND #dp = :f"),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
}

func rosterIDsInput(eventsTable, eventID string) *dynamodb.GetItemInput {
	return &dynamodb.GetItemInput{
		TableName:                aws.String(eventsTable),
		Key:                      strKey(fieldEventID, eventID),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#id, #ids"),
		ExpressionAttributeNames: map[string]string{"#id": fieldEventID, "#ids": fieldParticipantIDs},
	}
}

func batchGetInput(table string, ids []string) *dynamodb.BatchGetItemInput {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = strKey(fieldParticipantID, id)
	}
	return &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			table: {Keys: keys, ConsistentRead: aws.Bool(true)},
		},
	}
}

// rosterConflict maps transaction cancellation reasons (event first,
// participant second) to domain errors.
func rosterConflict(eventID string, reasons []types.CancellationReason) error {
	failed := func(i int) bool {
		return i < len(reasons) && aws.ToString(reasons[i].Code) == "ConditionalCheckFailed"
	}
	switch {
	case failed(0) && reasons[0].Item == nil:
		return fmt.Errorf("event not found: %w", domain.ErrNotFound)
	case failed(0):
		return fmt.Errorf("event %s: %w", eventID, domain.ErrEventLocked)
	case failed(1):
		return fmt.Errorf("participant not found in event %s: %w", eventID, domain.ErrNotFound)
	default:
		return fmt.Errorf("roster of event %s changed: %w", eventID, domain.ErrConcurrentModification)
	}
}
