package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements VectorIndex against a Qdrant collection.
// Expected payload keys: "kind", "text", "question"; points carry a
// "chatbot_id" keyword for tenant scoping.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantIndex() (*QdrantIndex, error) {
	rawURL := os.Getenv("QDRANT_URL")
	if rawURL == "" {
		return nil, fmt.Errorf("QDRANT_URL is not set")
	}

	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		collection = "knowledge"
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantIndex{client: client, collection: collection}, nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, tenantID string, topK int) ([]Candidate, error) {
	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{keywordCondition("chatbot_id", tenantID)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	out := make([]Candidate, 0, len(points))
	for _, point := range points {
		c := Candidate{
			Score: float64(point.Score),
			Kind:  KindContext,
		}

		if point.Id != nil {
			if uuid := point.Id.GetUuid(); uuid != "" {
				c.ID = uuid
			} else if num := point.Id.GetNum(); num != 0 {
				c.ID = fmt.Sprintf("%d", num)
			}
		}

		for k, v := range point.Payload {
			switch k {
			case "kind":
				if s := v.GetStringValue(); s != "" {
					c.Kind = Kind(s)
				}
			case "text":
				c.Text = v.GetStringValue()
			case "question":
				c.Question = v.GetStringValue()
			}
		}

		out = append(out, c)
	}

	return out, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

var _ VectorIndex = (*QdrantIndex)(nil)
