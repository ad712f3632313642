package store

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// Client owns the MongoDB connection. It is created once at startup and shared.
type Client struct {
	config *Config
	client *mongo.Client
	orders *mongo.Collection
	logger logger.Logger
}

// Connect opens and verifies a connection to the configured deployment
func Connect(ctx context.Context, config *Config, log logger.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "mongo_uri", "", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("store")

	clientOpts := options.Client().
		ApplyURI(config.URI).
		SetAppName(config.AppName).
		SetConnectTimeout(config.ConnectTimeout)
	if config.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(config.ServerSelectionTimeout)
	}
	if config.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(config.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "mongodb", err)
	}

	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "mongodb", err)
	}

	log.WithFields(logger.Fields{
		"database":   config.Database,
		"collection": config.Collection,
	}).Info("Connected to document store")

	return &Client{
		config: config,
		client: mongoClient,
		orders: mongoClient.Database(config.Database).Collection(config.Collection),
		logger: log,
	}, nil
}

// Orders returns the orders collection
func (c *Client) Orders() *mongo.Collection {
	return c.orders
}

// Close disconnects from the deployment
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return errors.StoreError(errors.CodeConnectionFailed, c.config.Collection, err)
	}
	c.logger.Debug("Document store connection closed")
	return nil
}
