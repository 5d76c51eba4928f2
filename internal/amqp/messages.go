package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TableChangedMessage announces that a table was saved. It carries no
// cell data: consumers read the current table from the database.
type TableChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Table     string    `json:"table"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTableChangedMessage(table string, rows int) *TableChangedMessage {
	return &TableChangedMessage{
		ID:        uuid.New(),
		Table:     table,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TableChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TableChangedMessageFromJSON decodes a message and rejects ones without a
// table name.
func TableChangedMessageFromJSON(data []byte) (*TableChangedMessage, error) {
	var msg TableChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Table == "" {
		return nil, errors.New("message has no table")
	}
	return &msg, nil
}
