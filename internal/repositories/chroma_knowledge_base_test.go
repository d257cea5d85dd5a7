package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehr-chatbot/internal/db"
	"ehr-chatbot/internal/models"
)

const kbPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

type fakeKB struct {
	exists    bool
	created   bool
	getPages  [][]map[string]interface{}
	upserted  map[string]interface{}
	queryResp db.QueryResponse
}

func (f *fakeKB) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(kbPath+"/medical_qa", func(w http.ResponseWriter, r *http.Request) {
		if !f.exists {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(db.Collection{ID: "kb", Name: "medical_qa"})
	})
	mux.HandleFunc(kbPath, func(w http.ResponseWriter, r *http.Request) {
		f.created = true
		f.exists = true
		_ = json.NewEncoder(w).Encode(db.Collection{ID: "kb", Name: "medical_qa"})
	})
	mux.HandleFunc(kbPath+"/kb/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.queryResp)
	})
	mux.HandleFunc(kbPath+"/kb/get", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		page := payload.Offset / payload.Limit
		resp := db.GetResponse{}
		if page < len(f.getPages) {
			resp.Metadatas = f.getPages[page]
			for range f.getPages[page] {
				resp.IDs = append(resp.IDs, "id")
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(kbPath+"/kb/upsert", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.upserted)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc(kbPath+"/kb/count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("7"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestKB(t *testing.T, f *fakeKB) *ChromaKnowledgeBase {
	srv := f.server(t)
	client := db.NewChromaDBClient(db.ChromaDBConfig{URL: srv.URL})
	return NewChromaKnowledgeBase(client, "medical_qa", nil)
}

func TestChromaKnowledgeBase_Search(t *testing.T) {
	f := &fakeKB{
		exists: true,
		queryResp: db.QueryResponse{
			IDs:       [][]string{{"q1", "q2"}},
			Documents: [][]string{{"What is asthma?", "What is HbA1c?"}},
			Metadatas: [][]map[string]interface{}{{
				{"condition_id": "cond_asthma", "condition_name": "Asthma", "answer": "A chronic airway disease."},
				{"condition_id": "cond_type_2_diabetes"},
			}},
			Distances: [][]float32{{0.05, 1.3}},
		},
	}
	kb := newTestKB(t, f)

	results, err := kb.Search(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "q1", results[0].ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-6)
	assert.Equal(t, "A chronic airway disease.", results[0].MetadataString(models.MetaAnswer))
	assert.Equal(t, 0.0, results[1].Score, "score is clamped to [0, 1]")
	assert.Equal(t, "", results[1].MetadataString("missing"))
}

func TestChromaKnowledgeBase_SearchErrors(t *testing.T) {
	kb := newTestKB(t, &fakeKB{exists: false})

	_, err := kb.Search(context.Background(), nil, 1)
	assert.Error(t, err)

	_, err = kb.Search(context.Background(), []float32{1}, 1)
	require.Error(t, err)
	var repoErr *VectorRepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, "search", repoErr.Operation)
	assert.True(t, errors.Is(err, db.ErrCollectionNotFound))
}

func TestChromaKnowledgeBase_ListConditions(t *testing.T) {
	firstPage := make([]map[string]interface{}, conditionPageSize)
	for i := range firstPage {
		firstPage[i] = map[string]interface{}{"condition_id": "cond_asthma", "condition_name": "Asthma"}
	}
	firstPage[10] = map[string]interface{}{"question": "orphan entry"}

	f := &fakeKB{
		exists: true,
		getPages: [][]map[string]interface{}{
			firstPage,
			{
				{"condition_id": "cond_hypertension", "condition_name": "Hypertension"},
				{"condition_id": "cond_custom"},
			},
		},
	}
	kb := newTestKB(t, f)

	conditions, err := kb.ListConditions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"cond_asthma":       "Asthma",
		"cond_hypertension": "Hypertension",
		"cond_custom":       "cond_custom",
	}, conditions)
}

func TestChromaKnowledgeBase_EnsureCollection(t *testing.T) {
	f := &fakeKB{exists: false}
	kb := newTestKB(t, f)

	require.NoError(t, kb.EnsureCollection(context.Background()))
	assert.True(t, f.created)

	f.created = false
	require.NoError(t, kb.EnsureCollection(context.Background()))
	assert.False(t, f.created, "existing collection is not recreated")
}

func TestChromaKnowledgeBase_StoreEntries(t *testing.T) {
	f := &fakeKB{exists: true}
	kb := newTestKB(t, f)
	ctx := context.Background()

	entries := []models.KnowledgeEntry{
		{ID: "q1", ConditionID: "cond_asthma", ConditionName: "Asthma", Question: "What is asthma?", Answer: "A.", FollowUp: "More?"},
		{ID: "q2", ConditionID: "cond_asthma", Question: "Triggers?", Answer: "Dust."},
	}
	require.NoError(t, kb.StoreEntries(ctx, entries, [][]float32{{0.1}, {0.2}}))
	assert.Len(t, f.upserted["ids"], 2)
	assert.Equal(t, []interface{}{"What is asthma?", "Triggers?"}, f.upserted["documents"])

	assert.Error(t, kb.StoreEntries(ctx, entries, [][]float32{{0.1}}))
	assert.Error(t, kb.StoreEntries(ctx, []models.KnowledgeEntry{{ID: "bad"}}, [][]float32{{0.1}}))
	assert.NoError(t, kb.StoreEntries(ctx, nil, nil))
}

func TestChromaKnowledgeBase_CountAndPing(t *testing.T) {
	kb := newTestKB(t, &fakeKB{exists: true})

	count, err := kb.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	assert.NoError(t, kb.Ping(context.Background()))
	assert.NoError(t, kb.Close())
}
