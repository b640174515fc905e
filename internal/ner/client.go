package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	BaseURL string // default "https://api-inference.huggingface.co"
	Model   string // default "dbmdz/bert-large-cased-finetuned-conll03-english"
	APIKey  string
	Timeout time.Duration // default 15s
}

// Client calls a HuggingFace-inference-shaped token-classification endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	if cfg.Model == "" {
		cfg.Model = "dbmdz/bert-large-cased-finetuned-conll03-english"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Classify submits text and returns the service's entity spans in order.
func (c *Client) Classify(ctx context.Context, text string) ([]Entity, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Debug("ner.classify.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	body := map[string]any{
		"inputs":  text,
		"options": map[string]any{"wait_for_model": true},
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model
	raw, status, err := c.sendJSON(ctx, endpoint, body, headers, rid)
	if err != nil {
		c.log.Warn("ner.classify.error",
			"req_id", rid,
			"status", status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var entities []Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		// some deployments wrap results per-input
		var nested [][]Entity
		if err2 := json.Unmarshal(raw, &nested); err2 != nil || len(nested) == 0 {
			c.log.Warn("ner.classify.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
			return nil, fmt.Errorf("decode entities: %w", err)
		}
		entities = nested[0]
	}

	c.log.Debug("ner.classify.ok",
		"req_id", rid,
		"entities", len(entities),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entities, nil
}
