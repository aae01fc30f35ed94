package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/bulk-mailer/pkg/helpers"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

const deliveryMapping = `{
  "mappings": {
    "properties": {
      "id":                {"type": "keyword"},
      "user_id":           {"type": "keyword"},
      "recipient_address": {"type": "keyword", "fields": {"text": {"type": "text"}}},
      "recipient_name":    {"type": "text"},
      "status":            {"type": "keyword"},
      "error":             {"type": "text"},
      "subject":           {"type": "text"},
      "body":              {"type": "text"},
      "attachments":       {"type": "keyword"},
      "sent_at":           {"type": "date"}
    }
  }
}`

// ErrMalformedEvent marks a queue message that can never be indexed.
var ErrMalformedEvent = errors.New("malformed delivery event")

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
	requestTimeout    = 3 * time.Second
)

// DeliveryIndex stores delivery events in Elasticsearch for full-text history search.
type DeliveryIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewDeliveryIndex(es *elasticsearch.Client, index string) *DeliveryIndex {
	return &DeliveryIndex{ES: es, Index: index}
}

func (d *DeliveryIndex) Ensure(ctx context.Context) error {
	return helpers.EnsureIndex(ctx, d.ES, d.Index, deliveryMapping)
}

// Put indexes ev under its log id, so redelivered events overwrite.
func (d *DeliveryIndex) Put(ctx context.Context, ev mailer.DeliveryEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := esapi.IndexRequest{Index: d.Index, DocumentID: ev.ID, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(c, d.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index delivery event %s: %s", ev.ID, res.Status())
	}
	return nil
}

func searchQuery(userID, q string, size int) map[string]any {
	must := []any{map[string]any{"match_all": map[string]any{}}}
	if q != "" {
		must = []any{map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"recipient_address.text^2", "recipient_name^2", "subject", "body", "error"},
			},
		}}
	}
	return map[string]any{
		"size": size,
		"sort": []any{map[string]any{"sent_at": map[string]any{"order": "desc"}}},
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{map[string]any{"term": map[string]any{"user_id": userID}}},
				"must":   must,
			},
		},
	}
}

// Search returns the user's events matching q, newest first. An empty q lists recent events.
func (d *DeliveryIndex) Search(ctx context.Context, userID, q string, size int) ([]mailer.DeliveryEvent, error) {
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	b, err := json.Marshal(searchQuery(userID, q, size))
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := d.ES.Search(
		d.ES.Search.WithContext(c),
		d.ES.Search.WithIndex(d.Index),
		d.ES.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search delivery events: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source mailer.DeliveryEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]mailer.DeliveryEvent, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// HandleEvent indexes one queued delivery event. Undecodable bodies and
// events without an id return ErrMalformedEvent; other errors are transient.
func (d *DeliveryIndex) HandleEvent(ctx context.Context, body []byte) error {
	var ev mailer.DeliveryEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.UserID == "" {
		return fmt.Errorf("%w: missing id or user_id", ErrMalformedEvent)
	}
	return d.Put(ctx, ev)
}
