// Package match translates two-sided diff task filters into SQL conditions
// and allow-listed ORDER BY clauses over the joined task/message shape.
//
// Every condition refers to the aliases t (diff_task) and q (queue_msg), so
// the same conditions serve row selection, single-column projection,
// counting, and the filtering stage of batch aggregation.
package match

import (
	"strings"

	"arcdiff/internal/db/mapper"
	"arcdiff/internal/domain"
)

// DiffTaskJoin is the FROM clause every condition in this package is
// written against.
const DiffTaskJoin = "diff_task t JOIN queue_msg q ON q.msg_id = t.queue_msg_id"

// Condition is one SQL boolean expression with its bound arguments.
type Condition struct {
	SQL  string
	Args []any
}

// Conditions is an ordered conjunction. An empty list matches all rows.
type Conditions []Condition

// Where renders " WHERE c1 AND c2 ..." and the flattened arguments, or an
// empty string when there are no conditions.
func (cs Conditions) Where() (string, []any) {
	if len(cs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(cs))
	var args []any
	for _, c := range cs {
		parts = append(parts, c.SQL)
		args = append(args, c.Args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// And returns cs with extra conditions appended.
func (cs Conditions) And(more ...Condition) Conditions {
	out := make(Conditions, 0, len(cs)+len(more))
	out = append(out, cs...)
	return append(out, more...)
}

// DiffTasks builds the conditions selecting diff tasks by queue-side and
// task-side filters.
func DiffTasks(qf domain.QueueFilter, tf domain.DiffTaskFilter) Conditions {
	var cs Conditions
	cs = appendQueue(cs, qf)
	cs = appendDiffTask(cs, tf)
	return cs
}

// DiffBatches builds the conditions for batch aggregation: the task
// conditions restricted to messages that carry a batch ID.
func DiffBatches(qf domain.QueueFilter, tf domain.DiffTaskFilter) Conditions {
	cs := Conditions{{SQL: "q.batch_id IS NOT NULL"}}
	return append(cs, DiffTasks(qf, tf)...)
}

func appendQueue(cs Conditions, qf domain.QueueFilter) Conditions {
	if len(qf.Statuses) > 0 {
		marks := make([]string, len(qf.Statuses))
		args := make([]any, len(qf.Statuses))
		for i, s := range qf.Statuses {
			marks[i] = "?"
			args[i] = string(s)
		}
		cs = append(cs, Condition{SQL: "q.status IN (" + strings.Join(marks, ", ") + ")", Args: args})
	}
	cs = appendEqual(cs, "q.device_name", qf.DeviceName)
	cs = appendEqual(cs, "q.batch_id", qf.BatchID)
	cs = appendRange(cs, "q.scheduled_time", qf.ScheduledTime)
	cs = appendRange(cs, "q.proc_start_time", qf.ProcessingStartTime)
	cs = appendRange(cs, "q.proc_end_time", qf.ProcessingEndTime)
	cs = appendRange(cs, "q.updated_time", qf.UpdatedTime)
	return cs
}

func appendDiffTask(cs Conditions, tf domain.DiffTaskFilter) Conditions {
	cs = appendEqual(cs, "t.local_aet", tf.LocalAET)
	cs = appendEqual(cs, "t.primary_aet", tf.PrimaryAET)
	cs = appendEqual(cs, "t.secondary_aet", tf.SecondaryAET)
	if tf.QueryString != "" {
		cs = append(cs, Condition{
			SQL:  `t.query_str LIKE ? ESCAPE '\'`,
			Args: []any{"%" + escapeLike(tf.QueryString) + "%"},
		})
	}
	if tf.CheckMissing != nil {
		cs = append(cs, Condition{SQL: "t.check_missing = ?", Args: []any{mapper.BoolToInt(*tf.CheckMissing)}})
	}
	if tf.CheckDifferent != nil {
		cs = append(cs, Condition{SQL: "t.check_different = ?", Args: []any{mapper.BoolToInt(*tf.CheckDifferent)}})
	}
	cs = appendEqual(cs, "t.compare_fields", tf.CompareFields)
	cs = appendRange(cs, "t.created_time", tf.CreatedTime)
	cs = appendRange(cs, "t.updated_time", tf.UpdatedTime)
	return cs
}

func appendEqual(cs Conditions, column, value string) Conditions {
	if value == "" {
		return cs
	}
	return append(cs, Condition{SQL: column + " = ?", Args: []any{value}})
}

func appendRange(cs Conditions, column string, r domain.TimeRange) Conditions {
	if r.From != nil {
		cs = append(cs, Condition{SQL: column + " >= ?", Args: []any{mapper.Millis(*r.From)}})
	}
	if r.To != nil {
		cs = append(cs, Condition{SQL: column + " <= ?", Args: []any{mapper.Millis(*r.To)}})
	}
	return cs
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
