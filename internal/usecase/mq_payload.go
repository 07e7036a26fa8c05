package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"bmschain-logger/internal/protocol/bmschain"
)

const FramePayloadType = "bms_frame"

// FramePayload 包装发往消息队列的帧, 在帧字段中注入序号与类型
type FramePayload struct {
	Type       string
	Index      int
	CapturedAt time.Time
	Frame      *bmschain.Frame
}

func NewFramePayload(index int, f *bmschain.Frame) FramePayload {
	return FramePayload{
		Type:       FramePayloadType,
		Index:      index,
		CapturedAt: time.Now(),
		Frame:      f,
	}
}

// Key 路由键, 同一链上同一设备的帧落在同一分区
func (p FramePayload) Key() string {
	if p.Frame == nil {
		return ""
	}
	return fmt.Sprintf("chain%d.dev%d", p.Frame.ChainID, p.Frame.DeviceID)
}

func (p FramePayload) MarshalJSON() ([]byte, error) {
	frameBytes, err := json.Marshal(p.Frame)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal(frameBytes, &data); err != nil || data == nil {
		data = map[string]interface{}{}
	}
	data["msgType"] = p.Type
	data["frameIndex"] = p.Index

	return json.Marshal(&struct {
		Type       string                 `json:"type"`
		Key        string                 `json:"key"`
		CapturedAt time.Time              `json:"captured_at"`
		Data       map[string]interface{} `json:"data"`
	}{
		Type:       p.Type,
		Key:        p.Key(),
		CapturedAt: p.CapturedAt,
		Data:       data,
	})
}
