package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-secret-friend/internal/config"
	"github.com/go-secret-friend/internal/domain"
)

// Store wraps S3 operations for the application.
type Store struct {
	client *s3.Client
	bucket string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for s3: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Upload streams an object to S3 under key and returns its s3:// URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// SaveDraw writes an immutable JSON record of a committed draw.
func (s *Store) SaveDraw(ctx context.Context, e *domain.Event, participants []domain.Participant) error {
	body, err := drawDocument(e, participants)
	if err != nil {
		return err
	}
	_, err = s.Upload(ctx, drawKey(e), bytes.NewReader(body), "application/json")
	return err
}

type archivedPair struct {
	GiverID      string `json:"giver_id"`
	GiverName    string `json:"giver_name"`
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name"`
}

type archivedDraw struct {
	EventID   string         `json:"event_id"`
	Title     string         `json:"title"`
	Organizer string         `json:"organizer"`
	EventDate time.Time      `json:"event_date"`
	DrawDate  time.Time      `json:"draw_date"`
	Pairs     []archivedPair `json:"pairs"`
}

func drawKey(e *domain.Event) string {
	return fmt.Sprintf("draws/%s.json", e.EventID)
}

func drawDocument(e *domain.Event, participants []domain.Participant) ([]byte, error) {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ParticipantID] = p.Name
	}
	doc := archivedDraw{
		EventID:   e.EventID,
		Title:     e.Title,
		Organizer: e.OrganizerIdentity,
		EventDate: e.Date,
		Pairs:     make([]archivedPair, 0, len(e.Pairs)),
	}
	if e.DrawDate != nil {
		doc.DrawDate = *e.DrawDate
	}
	for _, p := range e.Pairs {
		doc.Pairs = append(doc.Pairs, archivedPair{
			GiverID:      p.GiverID,
			GiverName:    names[p.GiverID],
			ReceiverID:   p.ReceiverID,
			ReceiverName: names[p.ReceiverID],
		})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode draw archive: %w", err)
	}
	return b, nil
}
