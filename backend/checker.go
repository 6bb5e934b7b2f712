package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// TokenSource возвращает bearer-токен бакета
type TokenSource func(ctx context.Context, bucket string) (string, error)

// S3Checker проверяет бакет запросом HeadBucket с bearer-токеном бакета
type S3Checker struct {
	region     string
	port       int
	pathStyle  bool
	httpClient *http.Client
	tokens     TokenSource

	mu      sync.Mutex
	clients map[string]*s3.Client
}

// NewS3Checker создает проверку. Запрос подписывается фиктивными ключами,
// после чего заголовок Authorization заменяется на Bearer.
// Клиенты собираются без общей конфигурации AWS, поэтому переменные окружения
// вроде AWS_CA_BUNDLE или AWS_PROFILE на проверку не влияют.
func NewS3Checker(cfg *Config, port int, httpClient *http.Client, tokens TokenSource) *S3Checker {
	return &S3Checker{
		region:     cfg.Region,
		port:       port,
		pathStyle:  cfg.PathStyle,
		httpClient: httpClient,
		tokens:     tokens,
		clients:    make(map[string]*s3.Client),
	}
}

// client возвращает S3-клиент бэкенда, создавая его при первом обращении
func (c *S3Checker) client(b *Backend) *s3.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[b.ID]; ok {
		return client
	}

	opts := s3.Options{
		Region:           c.region,
		Credentials:      credentials.NewStaticCredentialsProvider("cosproxy", "cosproxy", ""),
		RetryMaxAttempts: 1,
		UsePathStyle:     c.pathStyle,
		BaseEndpoint:     aws.String("https://" + net.JoinHostPort(b.Host, strconv.Itoa(c.port))),
		APIOptions:       []func(*middleware.Stack) error{bearerAuth(b.ID, c.tokens)},
	}
	// nil *http.Client в интерфейсе s3.HTTPClient не считается пустым
	if c.httpClient != nil {
		opts.HTTPClient = c.httpClient
	}
	client := s3.New(opts)
	c.clients[b.ID] = client
	return client
}

// Check реализует Checker
func (c *S3Checker) Check(ctx context.Context, b *Backend) error {
	_, err := c.client(b).HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.ID),
	})
	return err
}

// bearerAuth добавляет в конец стадии Finalize middleware,
// заменяющий подпись SigV4 на bearer-токен бакета
func bearerAuth(bucket string, tokens TokenSource) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(middleware.FinalizeMiddlewareFunc("CosproxyBearerAuth",
			func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
				req, ok := in.Request.(*smithyhttp.Request)
				if !ok {
					return middleware.FinalizeOutput{}, middleware.Metadata{}, fmt.Errorf("unexpected request type %T", in.Request)
				}
				token, err := tokens(ctx, bucket)
				if err != nil {
					return middleware.FinalizeOutput{}, middleware.Metadata{}, fmt.Errorf("bearer token for %s: %w", bucket, err)
				}
				req.Header.Set("Authorization", "Bearer "+token)
				return next.HandleFinalize(ctx, in)
			}), middleware.After)
	}
}
