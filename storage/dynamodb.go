package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/codesnap/codesnap/models"
)

const (
	dynamoIDIndex    = "id-index"
	dynamoCounterKey = "#counter"
)

// dynamoAPI is the subset of the DynamoDB client the store uses
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// DynamoStore implements PasteStore using DynamoDB. Items are keyed by
// paste_id; the internal id is reachable through the id-index GSI.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       Clock
}

// NewDynamoStore creates a new DynamoDB storage backend
func NewDynamoStore(tableName, region string, opts ...Option) (*DynamoStore, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}

	return newDynamoStore(dynamodb.NewFromConfig(cfg), tableName, opts...), nil
}

func newDynamoStore(client dynamoAPI, tableName string, opts ...Option) *DynamoStore {
	o := buildOptions(opts)
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       o.now,
	}
}

// Migrate creates the table with its GSI and enables native TTL when the
// table does not exist yet
func (d *DynamoStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("paste_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("paste_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(dynamoIDIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)}, 4*time.Minute); err != nil {
		return err
	}

	_, err = d.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(d.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	return err
}

// nextID allocates the next internal id from the counter item
func (d *DynamoStore) nextID(ctx context.Context) (int64, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"paste_id": &types.AttributeValueMemberS{Value: dynamoCounterKey},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	seq, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("counter item has no sequence")
	}
	return strconv.ParseInt(seq.Value, 10, 64)
}

// Create saves a paste to DynamoDB
func (d *DynamoStore) Create(ctx context.Context, paste *models.Paste) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id, err := d.nextID(ctx)
	if err != nil {
		return nil, err
	}

	row := *paste
	row.ID = id
	row.ApplyDefaults()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = d.now().UTC()
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                pasteToItem(&row),
		ConditionExpression: aws.String("attribute_not_exists(paste_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrDuplicateID
		}
		return nil, err
	}
	return &row, nil
}

// GetByPublicID retrieves a paste by its public id
func (d *DynamoStore) GetByPublicID(ctx context.Context, pasteID string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if pasteID == dynamoCounterKey {
		return nil, ErrNotFound
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"paste_id": &types.AttributeValueMemberS{Value: pasteID},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return d.live(ctx, itemToPaste(result.Item))
}

// GetByID retrieves a paste by its internal id through the id-index GSI
func (d *DynamoStore) GetByID(ctx context.Context, id int64) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	item, err := d.itemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.live(ctx, itemToPaste(item))
}

func (d *DynamoStore) itemByID(ctx context.Context, id int64) (map[string]types.AttributeValue, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(dynamoIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	return out.Items[0], nil
}

// live purges and hides an expired paste. DynamoDB's TTL deletion can lag by
// hours so the read path cannot rely on it.
func (d *DynamoStore) live(ctx context.Context, paste *models.Paste) (*models.Paste, error) {
	if paste.IsExpiredAt(d.now()) {
		return nil, expiredGone(paste.PasteID, d.deleteKey(ctx, paste.PasteID))
	}
	return paste, nil
}

// IncrementViews increments the view counter for a paste
func (d *DynamoStore) IncrementViews(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pasteID, err := d.keyForID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"paste_id": &types.AttributeValueMemberS{Value: pasteID},
		},
		UpdateExpression:    aws.String("ADD #views :inc"),
		ConditionExpression: aws.String("attribute_exists(paste_id)"),
		ExpressionAttributeNames: map[string]string{
			"#views": "views",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}

// ListRecent returns live pastes newest first
func (d *DynamoStore) ListRecent(ctx context.Context, limit int) ([]models.Paste, error) {
	pastes, err := d.scanLive(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pastes, func(i, j int) bool {
		if pastes[i].CreatedAt.Equal(pastes[j].CreatedAt) {
			return pastes[i].ID > pastes[j].ID
		}
		return pastes[i].CreatedAt.After(pastes[j].CreatedAt)
	})
	return capList(pastes, limit), nil
}

// ListRelated returns live pastes sharing a language, most viewed first
func (d *DynamoStore) ListRelated(ctx context.Context, language string, excludeID int64, limit int) ([]models.Paste, error) {
	filter := "#language = :language"
	values := map[string]types.AttributeValue{
		":language": &types.AttributeValueMemberS{Value: language},
	}
	if excludeID != 0 {
		filter += " AND id <> :exclude"
		values[":exclude"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(excludeID, 10)}
	}

	pastes, err := d.scanLive(ctx, filter, values)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pastes, func(i, j int) bool {
		return pastes[i].Views > pastes[j].Views
	})
	return capList(pastes, limit), nil
}

// scanLive scans every page of the table for live pastes matching an
// additional filter expression
func (d *DynamoStore) scanLive(ctx context.Context, extraFilter string, values map[string]types.AttributeValue) ([]models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := "attribute_exists(id) AND (attribute_not_exists(expires_at) OR expires_at > :now)"
	if extraFilter != "" {
		filter += " AND " + extraFilter
	}
	exprValues := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().UnixMilli(), 10)},
	}
	for k, v := range values {
		exprValues[k] = v
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(d.tableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: exprValues,
	}
	if extraFilter != "" {
		input.ExpressionAttributeNames = map[string]string{"#language": "language"}
	}

	pastes := []models.Paste{}
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			pastes = append(pastes, *itemToPaste(item))
		}
	}
	return pastes, nil
}

// Delete removes a paste from DynamoDB
func (d *DynamoStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pasteID, err := d.keyForID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return d.deleteKey(ctx, pasteID)
}

func (d *DynamoStore) deleteKey(ctx context.Context, pasteID string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"paste_id": &types.AttributeValueMemberS{Value: pasteID},
		},
	})
	return err
}

// UpdateContent replaces the content of a paste
func (d *DynamoStore) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pasteID, err := d.keyForID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"paste_id": &types.AttributeValueMemberS{Value: pasteID},
		},
		UpdateExpression:    aws.String("SET #content = :content"),
		ConditionExpression: aws.String("attribute_exists(paste_id)"),
		ExpressionAttributeNames: map[string]string{
			"#content": "content",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":content": &types.AttributeValueMemberS{Value: content},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteExpired removes pastes whose expiry is at or before the given instant
func (d *DynamoStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(d.tableName),
		FilterExpression:     aws.String("expires_at <= :before"),
		ProjectionExpression: aws.String("paste_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":before": &types.AttributeValueMemberN{Value: strconv.FormatInt(before.UnixMilli(), 10)},
		},
	}

	var deleted int64
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, err
		}
		for _, item := range page.Items {
			key, ok := item["paste_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := d.deleteKey(ctx, key.Value); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

func (d *DynamoStore) keyForID(ctx context.Context, id int64) (string, error) {
	item, err := d.itemByID(ctx, id)
	if err != nil {
		return "", err
	}
	key, ok := item["paste_id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", ErrNotFound
	}
	return key.Value, nil
}

// Ping checks that the table is reachable
func (d *DynamoStore) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)})
	return err
}

// Close is a no-op for DynamoDB
func (d *DynamoStore) Close() error {
	return nil
}

func capList(pastes []models.Paste, limit int) []models.Paste {
	if limit > 0 && len(pastes) > limit {
		return pastes[:limit]
	}
	return pastes
}

// pasteToItem converts a Paste model to a DynamoDB item. Timestamps are
// stored as unix milliseconds; ttl carries unix seconds for native expiry.
func pasteToItem(paste *models.Paste) map[string]types.AttributeValue {
	tags := make([]types.AttributeValue, 0, len(paste.Tags))
	for _, tag := range paste.Tags {
		tags = append(tags, &types.AttributeValueMemberS{Value: tag})
	}

	item := map[string]types.AttributeValue{
		"paste_id":    &types.AttributeValueMemberS{Value: paste.PasteID},
		"id":          &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.ID, 10)},
		"title":       &types.AttributeValueMemberS{Value: paste.Title},
		"content":     &types.AttributeValueMemberS{Value: paste.Content},
		"language":    &types.AttributeValueMemberS{Value: paste.Language},
		"author_name": &types.AttributeValueMemberS{Value: paste.AuthorName},
		"tags":        &types.AttributeValueMemberL{Value: tags},
		"views":       &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.Views, 10)},
		"created_at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.CreatedAt.UnixMilli(), 10)},
		"is_file":     &types.AttributeValueMemberBOOL{Value: paste.IsFile},
	}

	// Add TTL if expires_at is set
	if paste.ExpiresAt != nil {
		item["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.ExpiresAt.UnixMilli(), 10)}
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.ExpiresAt.Unix(), 10)}
	}
	if paste.FileName != "" {
		item["file_name"] = &types.AttributeValueMemberS{Value: paste.FileName}
	}
	if paste.FileType != "" {
		item["file_type"] = &types.AttributeValueMemberS{Value: paste.FileType}
	}

	return item
}

// itemToPaste converts a DynamoDB item to a Paste model
func itemToPaste(item map[string]types.AttributeValue) *models.Paste {
	paste := &models.Paste{}

	if pasteID, ok := item["paste_id"].(*types.AttributeValueMemberS); ok {
		paste.PasteID = pasteID.Value
	}

	if id, ok := item["id"].(*types.AttributeValueMemberN); ok {
		if v, err := strconv.ParseInt(id.Value, 10, 64); err == nil {
			paste.ID = v
		}
	}

	if title, ok := item["title"].(*types.AttributeValueMemberS); ok {
		paste.Title = title.Value
	}

	if content, ok := item["content"].(*types.AttributeValueMemberS); ok {
		paste.Content = content.Value
	}

	if language, ok := item["language"].(*types.AttributeValueMemberS); ok {
		paste.Language = language.Value
	}

	if author, ok := item["author_name"].(*types.AttributeValueMemberS); ok {
		paste.AuthorName = author.Value
	}

	paste.Tags = []string{}
	if tags, ok := item["tags"].(*types.AttributeValueMemberL); ok {
		for _, tag := range tags.Value {
			if s, ok := tag.(*types.AttributeValueMemberS); ok {
				paste.Tags = append(paste.Tags, s.Value)
			}
		}
	}

	if views, ok := item["views"].(*types.AttributeValueMemberN); ok {
		if v, err := strconv.ParseInt(views.Value, 10, 64); err == nil {
			paste.Views = v
		}
	}

	if createdAt, ok := item["created_at"].(*types.AttributeValueMemberN); ok {
		if ms, err := strconv.ParseInt(createdAt.Value, 10, 64); err == nil {
			paste.CreatedAt = time.UnixMilli(ms).UTC()
		}
	}

	if expiresAt, ok := item["expires_at"].(*types.AttributeValueMemberN); ok {
		if ms, err := strconv.ParseInt(expiresAt.Value, 10, 64); err == nil {
			expiry := time.UnixMilli(ms).UTC()
			paste.ExpiresAt = &expiry
		}
	}

	if isFile, ok := item["is_file"].(*types.AttributeValueMemberBOOL); ok {
		paste.IsFile = isFile.Value
	}

	if fileName, ok := item["file_name"].(*types.AttributeValueMemberS); ok {
		paste.FileName = fileName.Value
	}

	if fileType, ok := item["file_type"].(*types.AttributeValueMemberS); ok {
		paste.FileType = fileType.Value
	}

	return paste
}
