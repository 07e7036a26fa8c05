package client

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"bmschain-logger/internal/protocol/bmschain"
)

// FrameBuilder 帮助构建测试用的 BMSCHAIN 串口帧
type FrameBuilder struct {
	TotalDevices int
	ChainID      int
	FaultCount   int
	// MalformedEvery > 0 时每 N 帧生成一帧缺少 DEV 的坏帧
	MalformedEvery int

	seq int
	rng *rand.Rand
}

func NewFrameBuilder(totalDevices, chainID, faultCount int, seed int64) *FrameBuilder {
	if totalDevices <= 0 {
		totalDevices = 1
	}
	return &FrameBuilder{
		TotalDevices: totalDevices,
		ChainID:      chainID,
		FaultCount:   faultCount,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// BuildFrame 生成下一帧, 设备号在 [0, TotalDevices) 内轮转
func (fb *FrameBuilder) BuildFrame() *bmschain.Frame {
	n := fb.seq
	fb.seq++

	f := &bmschain.Frame{
		TotalDevices:   fb.TotalDevices,
		ChainID:        fb.ChainID,
		DeviceID:       n % fb.TotalDevices,
		CurrentA:       round(-2.0+math.Sin(float64(n)/10)*1.5, 3),
		VrefV:          2.5,
		VUVThresholdV:  2.8,
		VOVThresholdV:  4.2,
		GPUTThresholdV: 0.3,
		GPOTThresholdV: 3.1,
		Faults:         make([]int, fb.FaultCount),
		VTRefV:         round(2.49+fb.rng.Float64()*0.01, 4),
	}

	var pack float64
	for i := 0; i < bmschain.CellCount; i++ {
		v := round(3.6+0.01*float64(i)-0.0005*float64(n)+fb.rng.Float64()*0.005, 4)
		f.Vcell[i] = v
		pack += v
		f.SOC[i] = max(0, 90-n/20)
		f.Temp[i] = round(25+fb.rng.Float64()*3, 2)
		if v > 3.7 {
			f.Bal[i] = 1
		}
	}
	f.PackVoltageV = round(pack, 3)

	for i := range f.Faults {
		if fb.rng.Intn(50) == 0 {
			f.Faults[i] = 1
		}
	}
	return f
}

// Build 返回下一帧的线路文本 (含 ENDData)
func (fb *FrameBuilder) Build() []byte {
	raw := bmschain.EncodeFrame(fb.BuildFrame())
	if fb.MalformedEvery > 0 && fb.seq%fb.MalformedEvery == 0 {
		raw = dropDevice(raw)
	}
	return []byte(raw)
}

// dropDevice 去掉 DEV 标签及其取值
func dropDevice(raw string) string {
	tokens := strings.Split(raw, bmschain.Delimiter)
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] == bmschain.LabelDevice {
			if _, err := strconv.Atoi(tokens[i+1]); err == nil {
				return strings.Join(append(tokens[:i:i], tokens[i+2:]...), bmschain.Delimiter)
			}
		}
	}
	return raw
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
