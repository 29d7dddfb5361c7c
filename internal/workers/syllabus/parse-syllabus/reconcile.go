// internal/workers/syllabus/parse-syllabus/reconcile.go
package parsesyllabus

import (
	"context"

	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"
	"github.com/jacobschwantes/syllabase-parser/internal/common/metrics"
	"github.com/jacobschwantes/syllabase-parser/internal/models"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	Fetch(ctx context.Context, table, id string) (*database.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]interface{}) error
}

// ForeignUpdate patches one related row.
type ForeignUpdate struct {
	Field  string
	Table  string
	ID     string
	Fields map[string]interface{}
}

// Plan is every write one invocation makes. Foreign updates are applied in
// order before the primary patch.
type Plan struct {
	Table          string
	ID             string
	Patch          map[string]interface{}
	ForeignUpdates []ForeignUpdate
	// Skipped holds foreign updates whose reference column was NULL. Their
	// ID is empty and they are never written.
	Skipped []ForeignUpdate
}

// Reconcile routes each answer to the course patch or to a related row. It
// performs no I/O.
func Reconcile(answers []interface{}, schema Schema, course *database.Record) *Plan {
	plan := &Plan{
		Table: course.Table,
		ID:    course.ID,
		Patch: make(map[string]interface{}, len(schema)+1),
	}

	n := len(schema)
	if len(answers) < n {
		n = len(answers)
	}

	for i := 0; i < n; i++ {
		switch q := schema[i].(type) {
		case ForeignQuestion:
			update := ForeignUpdate{
				Field:  q.FieldName,
				Table:  q.RelatedTable,
				Fields: mapSubFields(q.SubFields, answers[i]),
			}
			ref, ok := course.Ref(q.FieldName)
			if !ok {
				plan.Skipped = append(plan.Skipped, update)
				continue
			}
			update.ID = ref
			plan.ForeignUpdates = append(plan.ForeignUpdates, update)
		case DirectQuestion:
			plan.Patch[q.FieldName] = normalize(answers[i], q.ForceArray)
		}
	}

	plan.Patch[models.StatusColumn] = models.StatusActive
	return plan
}

// normalize unwraps a one-element answer unless forceArray is set. Empty
// and multi-element sequences are kept. A bare scalar is kept, or wrapped
// into a one-element sequence under forceArray; null stays null.
func normalize(answer interface{}, forceArray bool) interface{} {
	seq, ok := answer.([]interface{})
	if !ok {
		if forceArray && answer != nil {
			return []interface{}{answer}
		}
		return answer
	}
	if len(seq) == 1 && !forceArray {
		return seq[0]
	}
	return seq
}

// mapSubFields pairs subFields[j] with answer[j]. A bare scalar counts as a
// one-element answer; surplus elements on either side are dropped.
func mapSubFields(subFields []string, answer interface{}) map[string]interface{} {
	var seq []interface{}
	switch t := answer.(type) {
	case nil:
	case []interface{}:
		seq = t
	default:
		seq = []interface{}{t}
	}

	fields := make(map[string]interface{}, len(subFields))
	for j := 0; j < len(subFields) && j < len(seq); j++ {
		fields[subFields[j]] = seq[j]
	}
	return fields
}

// Apply writes the plan. The first failed foreign write aborts the run, so
// the course is never marked active after a partial update.
func Apply(ctx context.Context, store Store, plan *Plan, log logger.Logger) error {
	for _, fu := range plan.Skipped {
		log.Warn("foreign reference is null, skipping related update", map[string]interface{}{
			"field": fu.Field,
			"table": fu.Table,
		})
		metrics.ForeignUpdates.WithLabelValues(fu.Table, "skipped").Inc()
	}

	for _, fu := range plan.ForeignUpdates {
		if err := store.Update(ctx, fu.Table, fu.ID, fu.Fields); err != nil {
			metrics.ForeignUpdates.WithLabelValues(fu.Table, "failed").Inc()
			return err
		}
		metrics.ForeignUpdates.WithLabelValues(fu.Table, "updated").Inc()
	}

	return store.Update(ctx, plan.Table, plan.ID, plan.Patch)
}
