package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jordanlanch/rivalscope/pkg/logger"
)

// DefaultArchivePrefix is the key prefix of archived reports
const DefaultArchivePrefix = "reports"

// ObjectStore is the subset of the S3 API the archive uses. *s3.Client implements it.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ArchiveConfig holds report archive configuration
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores such as MinIO
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
	Prefix          string
}

// ArchivedReport describes one stored workbook
type ArchivedReport struct {
	Key          string    `json:"key"`
	Bucket       string    `json:"bucket"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Archive keeps point-in-time XLSX snapshots of analyses in an S3 bucket,
// under <prefix>/<organization>/<analysis>/.
type Archive struct {
	reports *Service
	store   ObjectStore
	bucket  string
	prefix  string
	logger  logger.Logger
	now     func() time.Time
}

// NewS3Archive creates an archive backed by S3
func NewS3Archive(ctx context.Context, reports *Service, cfg ArchiveConfig, log logger.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return NewArchive(reports, client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewArchive creates an archive over any ObjectStore
func NewArchive(reports *Service, store ObjectStore, bucket, prefix string, log logger.Logger) *Archive {
	if log == nil {
		log = logger.Default()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultArchivePrefix
	}
	return &Archive{
		reports: reports,
		store:   store,
		bucket:  bucket,
		prefix:  prefix,
		logger:  log.With("component", "archive"),
		now:     time.Now,
	}
}

// Save renders the analysis report and uploads it
func (a *Archive) Save(ctx context.Context, organizationID, analysisID string) (*ArchivedReport, error) {
	var buf bytes.Buffer
	filename, err := a.reports.Report(ctx, organizationID, analysisID, &buf)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	key := path.Join(a.analysisPrefix(organizationID, analysisID), now.Format("20060102T150405Z")+"-"+filename)
	size := int64(buf.Len())

	_, err = a.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(ContentType),
		StorageClass:  types.StorageClassStandardIa,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	a.logger.Info("report archived", "analysis_id", analysisID, "key", key, "bytes", size)
	return &ArchivedReport{Key: key, Bucket: a.bucket, Size: size, LastModified: now}, nil
}

// List returns the archived reports of an analysis, newest first
func (a *Archive) List(ctx context.Context, organizationID, analysisID string) ([]ArchivedReport, error) {
	// ownership check before touching the bucket
	if _, err := a.reports.source.GetAnalysis(ctx, organizationID, analysisID); err != nil {
		return nil, err
	}

	out, err := a.store.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.analysisPrefix(organizationID, analysisID) + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]ArchivedReport, 0, len(out.Contents))
	for _, obj := range out.Contents {
		reports = append(reports, ArchivedReport{
			Key:          aws.ToString(obj.Key),
			Bucket:       a.bucket,
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Key > reports[j].Key
	})
	return reports, nil
}

func (a *Archive) analysisPrefix(organizationID, analysisID string) string {
	return path.Join(a.prefix, organizationID, analysisID)
}
