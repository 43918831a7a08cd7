package device

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/models"
)

// 设备消息类型
const (
	MsgCapabilities = "capabilities"
	MsgFix          = "fix"
	MsgSteps        = "steps"
)

// Message 设备 WebSocket 上行消息
type Message struct {
	MsgType      string              `json:"msg_type"`               // capabilities, fix, steps
	Value        string              `json:"value,omitempty"`        // fix 的逗号分隔值
	Fix          *models.LocationFix `json:"fix,omitempty"`          // fix 的结构化形式
	Steps        *int                `json:"steps,omitempty"`        // 计步器累计值
	Capabilities *Capabilities       `json:"capabilities,omitempty"` // 能力上报
}

// Apply 将消息应用到数据源
func (f *Feed) Apply(raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode device message: %w", err)
	}

	switch msg.MsgType {
	case MsgCapabilities:
		if msg.Capabilities == nil {
			return errors.New("capabilities message without payload")
		}
		f.SetCapabilities(*msg.Capabilities)

	case MsgFix:
		fix, err := msg.fix()
		if err != nil {
			return err
		}
		f.PushFix(fix)

	case MsgSteps:
		if msg.Steps == nil {
			return errors.New("steps message without payload")
		}
		f.PushSteps(*msg.Steps)

	default:
		f.logger.Debug("Unknown device message type",
			zap.String("uid", f.userID),
			zap.String("msg_type", msg.MsgType))
	}
	return nil
}

func (m *Message) fix() (models.LocationFix, error) {
	if m.Fix != nil {
		return *m.Fix, nil
	}
	if m.Value == "" {
		return models.LocationFix{}, errors.New("fix message without payload")
	}
	return ParseFix(m.Value)
}
