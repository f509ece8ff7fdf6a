package payment

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// Callback 归一化后的网关回调
type Callback struct {
	ID         string // 网关账单或支付 ID
	ExternalID string // 本地支付单号
	Status     string // 网关原始状态
	PaidAmount *int64
	PaidAt     *time.Time
	Raw        models.JSON
}

// ErrMalformedCallback 回调内容无法解析
var ErrMalformedCallback = stderrors.New("malformed callback payload")

// 账单回调与事件信封中的数据字段
type callbackFields struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"external_id"`
	ReferenceID string     `json:"reference_id"`
	Status      string     `json:"status"`
	Amount      *float64   `json:"amount"`
	PaidAmount  *float64   `json:"paid_amount"`
	PaidAt      *time.Time `json:"paid_at"`
	Updated     *time.Time `json:"updated"`
}

type callbackEnvelope struct {
	callbackFields
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseCallback 解析网关回调
// 支持账单回调（字段在顶层）和事件信封（event + data）两种格式
func ParseCallback(body []byte) (*Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedCallback
	}
	var raw models.JSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMalformedCallback
	}

	fields := env.callbackFields
	envelope := env.Event != "" && len(env.Data) > 0 && string(env.Data) != "null"
	if envelope {
		var data callbackFields
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, ErrMalformedCallback
		}
		fields = data
		if fields.Status == "" {
			fields.Status = statusFromEvent(env.Event)
		}
	}

	cb := &Callback{
		ID:         fields.ID,
		ExternalID: fields.ExternalID,
		Status:     strings.ToUpper(strings.TrimSpace(fields.Status)),
		PaidAt:     fields.PaidAt,
		Raw:        raw,
	}
	if cb.ExternalID == "" {
		cb.ExternalID = fields.ReferenceID
	}
	switch {
	case fields.PaidAmount != nil:
		cb.PaidAmount = roundAmount(*fields.PaidAmount)
	case envelope && fields.Amount != nil:
		cb.PaidAmount = roundAmount(*fields.Amount)
	}
	if cb.PaidAt == nil && envelope {
		cb.PaidAt = fields.Updated
	}
	if cb.ExternalID == "" || cb.Status == "" {
		return nil, ErrMalformedCallback
	}
	return cb, nil
}

// EventKey 回调去重键，同一账单同一状态的重放得到相同的键
func (c *Callback) EventKey() string {
	name := c.ExternalID + "|" + c.ID + "|" + c.Status
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// payment.succeeded -> SUCCEEDED
func statusFromEvent(event string) string {
	idx := strings.LastIndex(event, ".")
	if idx < 0 {
		return ""
	}
	return event[idx+1:]
}

func roundAmount(v float64) *int64 {
	n := int64(math.Round(v))
	return &n
}
