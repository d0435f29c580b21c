package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bankcal/internal/recurrence"
)

// Why a detection run was requested.
const (
	ReasonImport   = "import"
	ReasonSchedule = "schedule"
	ReasonManual   = "manual"
	ReasonStartup  = "startup"
)

// DetectionRequestMessage asks the worker to re-run detection over the stored
// transactions. It carries no transactions; the worker reads them from storage.
type DetectionRequestMessage struct {
	RequestID string              `json:"requestId"`
	Reason    string              `json:"reason"`
	Options   *recurrence.Options `json:"options,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func NewDetectionRequestMessage(reason string, opts *recurrence.Options) *DetectionRequestMessage {
	return &DetectionRequestMessage{
		RequestID: uuid.NewString(),
		Reason:    reason,
		Options:   opts,
		Timestamp: time.Now(),
	}
}

func (m *DetectionRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DetectionRequestMessageFromJSON(data []byte) (*DetectionRequestMessage, error) {
	var msg DetectionRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, fmt.Errorf("detection request without requestId")
	}
	return &msg, nil
}

// SeriesDetectedMessage reports the outcome of a detection run.
type SeriesDetectedMessage struct {
	RequestID    string    `json:"requestId"`
	SeriesIDs    []string  `json:"seriesIds"`
	Transactions int       `json:"transactions"`
	Orphans      int       `json:"orphans"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewSeriesDetectedMessage summarises res for requestID. A non-nil err is
// reported in place of the result.
func NewSeriesDetectedMessage(requestID string, transactions int, res recurrence.Result, err error) *SeriesDetectedMessage {
	msg := &SeriesDetectedMessage{
		RequestID:    requestID,
		SeriesIDs:    make([]string, 0, len(res.Series)),
		Transactions: transactions,
		Orphans:      len(res.OrphanIDs),
		Timestamp:    time.Now(),
	}
	if err != nil {
		msg.Error = err.Error()
		return msg
	}
	for _, s := range res.Series {
		msg.SeriesIDs = append(msg.SeriesIDs, s.ID)
	}
	return msg
}

func (m *SeriesDetectedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SeriesDetectedMessageFromJSON(data []byte) (*SeriesDetectedMessage, error) {
	var msg SeriesDetectedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
