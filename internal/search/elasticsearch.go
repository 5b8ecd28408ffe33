// internal/search/elasticsearch.go
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/models"
)

// ElasticPool queries the candidate pool from the students index. Optional:
// when unconfigured the orchestrator reads the pool from Postgres directly.
// The index carries only structural fields; skills always come from the
// relational store so affinity inputs have one source of truth.
type ElasticPool struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticPool(client *elasticsearch.Client, index string) *ElasticPool {
	return &ElasticPool{client: client, index: index}
}

// ActiveStudents runs a filtered bool query over the student index.
func (p *ElasticPool) ActiveStudents(ctx context.Context, filters Filters, limit int) ([]models.Student, error) {
	queryBody := buildStudentPoolQuery(filters)
	body, _ := json.Marshal(queryBody)

	from := 0
	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &limit,
	}

	res, err := req.Do(ctx, p.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewSearchTimeoutError("student_pool")
		}
		return nil, apperrors.NewSearchQueryFailedError("student_pool", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError("student_pool", fmt.Errorf("elasticsearch: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source studentDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError("student_pool", err)
	}

	students := make([]models.Student, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		students = append(students, hit.Source.toModel())
	}
	return students, nil
}

type studentDoc struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"userId"`
	Name               string `json:"name"`
	Grade              string `json:"grade"`
	Course             string `json:"course"`
	Car                bool   `json:"car"`
	Active             bool   `json:"active"`
	ProfamilyID        *int64 `json:"profamilyId"`
	VerificationStatus string `json:"verificationStatus"`
}

func (d studentDoc) toModel() models.Student {
	return models.Student{
		ID:                 d.ID,
		UserID:             d.UserID,
		Name:               d.Name,
		Grade:              d.Grade,
		Course:             d.Course,
		Car:                d.Car,
		Active:             d.Active,
		ProfamilyID:        d.ProfamilyID,
		VerificationStatus: d.VerificationStatus,
	}
}

// buildStudentPoolQuery builds the bool-filter query for the pool.
func buildStudentPoolQuery(filters Filters) map[string]interface{} {
	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"active": true},
		},
	}

	if filters.ProfamilyID != nil {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"profamilyId": *filters.ProfamilyID},
		})
	}
	if filters.Grade != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"grade": filters.Grade},
		})
	}
	if filters.Car != nil {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"car": *filters.Car},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filterClauses,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
		},
	}
}
