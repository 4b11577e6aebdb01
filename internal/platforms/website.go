package platforms

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

// WebsitePublisher uploads rendered fronting pages to an S3/R2 bucket. It is
// process-wide and safe for concurrent use; per-user state stays in the page
// content itself.
type WebsitePublisher struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

type WebsiteConfig struct {
	Endpoint  string
	Bucket    string
	PublicURL string
	Region    string
}

func NewWebsitePublisher(cfg WebsiteConfig) (*WebsitePublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &WebsitePublisher{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

func (p *WebsitePublisher) PublishPage(ctx context.Context, urlName string, page []byte) (string, error) {
	objectKey := fmt.Sprintf("front/%s/index.html", urlName)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(objectKey),
		Body:         bytes.NewReader(page),
		ContentType:  aws.String("text/html; charset=utf-8"),
		CacheControl: aws.String("max-age=30"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload page: %w", err)
	}

	if p.publicURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(p.publicURL, "/"), objectKey), nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.bucket, objectKey), nil
}

var websitePage = template.Must(template.New("front").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.SystemName}} — who is fronting</title>
</head>
<body>
<h1>{{.SystemName}}</h1>
{{if .Fronters}}
<ul>
{{range .Fronters}}<li>{{.Name}}</li>
{{end}}</ul>
{{else}}
<p>{{.NoFronters}}</p>
{{end}}
<footer><small>updated {{.UpdatedAt}}</small></footer>
</body>
</html>
`))

type websitePageData struct {
	SystemName string
	Fronters   []fronting.Fronter
	NoFronters string
	UpdatedAt  string
}

// RenderWebsitePage produces the public fronting page for a snapshot.
func RenderWebsitePage(cfg *models.UserConfigForUpdater, snap fronting.Snapshot) ([]byte, error) {
	systemName := cfg.WebsiteSystemName
	if systemName == "" {
		systemName = cfg.WebsiteURLName
	}
	noFronters := cfg.StatusNoFronts
	if noFronters == "" {
		noFronters = "nobody is fronting right now"
	}

	var buf bytes.Buffer
	err := websitePage.Execute(&buf, websitePageData{
		SystemName: systemName,
		Fronters:   snap.Fronters,
		NoFronters: noFronters,
		UpdatedAt:  snap.ObservedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("render website page: %w", err)
	}
	return buf.Bytes(), nil
}

// updateWebsite renders the page, uploads it and refreshes the redis copy
// that backs the public HTTP endpoint.
func (u *Updater) updateWebsite(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	page, err := RenderWebsitePage(cfg, snap)
	if err != nil {
		return err
	}

	url, err := u.deps.Publisher.PublishPage(ctx, cfg.WebsiteURLName, page)
	if err != nil {
		return err
	}

	if u.deps.PageCache != nil {
		key := "website:page:" + cfg.WebsiteURLName
		if err := u.deps.PageCache.Set(ctx, key, string(page), 10*time.Minute); err != nil {
			u.deps.Log.Warn("website_page_cache_failed", "user_id", cfg.UserID, "error", err)
		}
	}

	u.deps.Log.Debug("website_page_published", "user_id", cfg.UserID, "url", url)
	return nil
}
