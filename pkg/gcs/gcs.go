package gcs

import (
	"context"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config is bound with the GCS prefix: GCS_BUCKET, GCS_PREFIX, GCS_CREDENTIALS_FILE.
type Config struct {
	Bucket          string `split_words:"true" default:"sport-store-agent-ai-bck01"`
	Prefix          string `split_words:"true" default:"images/"`
	CredentialsFile string `split_words:"true"`
}

// New returns a storage client using application default credentials unless
// a credentials file is configured.
func (c *Config) New(ctx context.Context) (*storage.Client, error) {
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return storage.NewClient(ctx, opts...)
}

func (c *Config) MustNew(ctx context.Context) *storage.Client {
	client, err := c.New(ctx)
	if err != nil {
		panic(err)
	}
	return client
}
