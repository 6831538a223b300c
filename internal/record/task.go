package record

import (
	"fmt"

	"github.com/msto63/firedoc/internal/value"
)

// Field names of a task document
const (
	TaskFieldName = "name"
	TaskFieldDone = "done"
)

var taskSchema = Schema{
	{Name: TaskFieldName, Kind: value.KindString},
	{Name: TaskFieldDone, Kind: value.KindBoolean},
}

// Task is a to-do item stored as a document with a name and a done flag
type Task struct {
	DocumentID string
	Name       string
	Done       bool
}

func (t *Task) Schema() Schema { return taskSchema }

func (t *Task) ID() string { return t.DocumentID }

func (t *Task) SetID(id string) { t.DocumentID = id }

func (t *Task) FieldValues() map[string]value.Value {
	return map[string]value.Value{
		TaskFieldName: value.String(t.Name),
		TaskFieldDone: value.Bool(t.Done),
	}
}

func (t *Task) Assign(name string, v value.Value) error {
	var err error
	switch name {
	case TaskFieldName:
		t.Name, err = v.AsString()
	case TaskFieldDone:
		t.Done, err = v.AsBool()
	default:
		err = fmt.Errorf("task has no field %q", name)
	}
	return err
}

// WithDone returns a copy of t with the done flag set
func (t Task) WithDone(done bool) Task {
	t.Done = done
	return t
}

func (t Task) String() string {
	mark := " "
	if t.Done {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %s (%s)", mark, t.Name, t.DocumentID)
}

// TaskFromFields maps document fields onto a Task
func TaskFromFields(id string, fields map[string]value.Value) (Task, error) {
	return ToRecord[Task](id, fields)
}
