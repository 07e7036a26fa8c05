package bmschain

import (
	"strconv"
	"strings"
)

// EncodeFrame 将 Frame 编码为串口协议文本 (含结束符)
func EncodeFrame(f *Frame) string {
	var b strings.Builder
	put := func(tok string) {
		b.WriteString(tok)
		b.WriteString(Delimiter)
	}
	putInt := func(v int) { put(strconv.Itoa(v)) }
	putFloat := func(v float64) { put(FormatFloat(v)) }

	put(LabelTotalDevices)
	putInt(f.TotalDevices)
	put(LabelChain)
	putInt(f.ChainID)
	put(LabelDevice)
	putInt(f.DeviceID)

	put(LabelSOC)
	for _, v := range f.SOC {
		putInt(v)
	}
	put(LabelVcell)
	for _, v := range f.Vcell {
		putFloat(v)
	}
	put(LabelTemp)
	for _, v := range f.Temp {
		putFloat(v)
	}
	put(LabelBal)
	for _, v := range f.Bal {
		putInt(v)
	}

	put(LabelCurrent)
	putFloat(f.CurrentA)
	put(LabelPackVoltage)
	putFloat(f.PackVoltageV)
	put(LabelVref)
	putFloat(f.VrefV)
	put(LabelVUV)
	putFloat(f.VUVThresholdV)
	put(LabelVOV)
	putFloat(f.VOVThresholdV)
	put(LabelGPUT)
	putFloat(f.GPUTThresholdV)
	put(LabelGPOT)
	putFloat(f.GPOTThresholdV)

	put(LabelFaults)
	for _, v := range f.Faults {
		putInt(v)
	}
	put(LabelVTRef)
	putFloat(f.VTRefV)

	b.WriteString(EndMarker)
	b.WriteString("\r\n")
	return b.String()
}

// FormatFloat 以最短且可还原的形式输出浮点数
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
