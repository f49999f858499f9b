package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageseo/internal/models"
)

type fakeSingle struct {
	ids []uuid.UUID
}

func (f *fakeSingle) Run(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return nil
}

type fakeBulk struct {
	batches [][]uuid.UUID
}

func (f *fakeBulk) Run(_ context.Context, ids []uuid.UUID) error {
	f.batches = append(f.batches, ids)
	return nil
}

func newTestConsumer(single SingleRunner, bulk BulkRunner) *Consumer {
	return &Consumer{single: single, bulk: bulk, log: zap.NewNop()}
}

func TestDispatch_ProcessImage(t *testing.T) {
	single := &fakeSingle{}
	bulk := &fakeBulk{}
	c := newTestConsumer(single, bulk)

	id := uuid.New()
	value, _ := json.Marshal(models.Task{Type: models.TaskProcessImage, ImageID: id})
	c.Dispatch(context.Background(), value)

	if len(single.ids) != 1 || single.ids[0] != id {
		t.Errorf("single runner got %v", single.ids)
	}
	if len(bulk.batches) != 0 {
		t.Errorf("bulk runner unexpectedly called: %v", bulk.batches)
	}
}

func TestDispatch_BulkDescribe(t *testing.T) {
	single := &fakeSingle{}
	bulk := &fakeBulk{}
	c := newTestConsumer(single, bulk)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	value, _ := json.Marshal(models.Task{Type: models.TaskBulkDescribe, ImageIDs: ids})
	c.Dispatch(context.Background(), value)

	if len(bulk.batches) != 1 || len(bulk.batches[0]) != 2 {
		t.Fatalf("bulk runner got %v", bulk.batches)
	}
	if bulk.batches[0][0] != ids[0] || bulk.batches[0][1] != ids[1] {
		t.Error("id ordering not preserved")
	}
	if len(single.ids) != 0 {
		t.Errorf("single runner unexpectedly called: %v", single.ids)
	}
}

func TestDispatch_BadPayloads(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{name: "invalid json", value: []byte("not json")},
		{name: "unknown type", value: []byte(`{"type":"mystery"}`)},
		{name: "empty", value: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			single := &fakeSingle{}
			bulk := &fakeBulk{}
			c := newTestConsumer(single, bulk)

			c.Dispatch(context.Background(), tt.value)

			if len(single.ids) != 0 || len(bulk.batches) != 0 {
				t.Error("bad payload must not reach a pipeline")
			}
		})
	}
}
