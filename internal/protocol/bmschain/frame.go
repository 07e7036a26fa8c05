package bmschain

// BMSCHAIN GUI 串口协议常量定义
const (
	// CellCount 每个器件的电芯数 (固定段长度)
	CellCount = 14
	// EndMarker 帧结束符
	EndMarker = "ENDData"
	// Delimiter 帧内字段分隔符
	Delimiter = ";"

	// DefaultFaultCount 无法从 C 源码提取故障名时使用的故障列数
	DefaultFaultCount = 187
	// FaultNamePrefix 故障名前缀 (生成列名时去除)
	FaultNamePrefix = "AEK_POW_BMS63CHAIN_"
)

// 帧内标签, 顺序即协议顺序
const (
	LabelTotalDevices = "TOTDEV"
	LabelChain        = "CHAIN"
	LabelDevice       = "DEV"
	LabelSOC          = "SOC"
	LabelVcell        = "Vcell:"
	LabelTemp         = "TEMP:"
	LabelBal          = "BAL:"
	LabelCurrent      = "Curr:"
	LabelPackVoltage  = "totV:"
	LabelVref         = "Vref:"
	LabelVUV          = "VUV:"
	LabelVOV          = "VOV:"
	LabelGPUT         = "GPUT:"
	LabelGPOT         = "GPOT:"
	LabelFaults       = "FAULTS:"
	LabelVTRef        = "VTREF"
)

var labels = map[string]struct{}{
	LabelTotalDevices: {},
	LabelChain:        {},
	LabelDevice:       {},
	LabelSOC:          {},
	LabelVcell:        {},
	LabelTemp:         {},
	LabelBal:          {},
	LabelCurrent:      {},
	LabelPackVoltage:  {},
	LabelVref:         {},
	LabelVUV:          {},
	LabelVOV:          {},
	LabelGPUT:         {},
	LabelGPOT:         {},
	LabelFaults:       {},
	LabelVTRef:        {},
}

// IsLabel 判断 token 是否为协议标签
func IsLabel(token string) bool {
	_, ok := labels[token]
	return ok
}

// Frame 代表一帧解析后的 BMSCHAIN 遥测数据
type Frame struct {
	TotalDevices int `json:"total_devices"` // 链上器件总数
	ChainID      int `json:"chain_id"`
	DeviceID     int `json:"device_id"`

	SOC   [CellCount]int     `json:"soc_values"`   // 电芯 SOC
	Vcell [CellCount]float64 `json:"vcell_values"` // 电芯电压 (V)
	Temp  [CellCount]float64 `json:"temp_values"`  // 温度原始值
	Bal   [CellCount]int     `json:"bal_values"`   // 均衡状态

	CurrentA       float64 `json:"current_a"`
	PackVoltageV   float64 `json:"pack_voltage_v"`
	VrefV          float64 `json:"vref_v"`
	VUVThresholdV  float64 `json:"vuv_threshold_v"`
	VOVThresholdV  float64 `json:"vov_threshold_v"`
	GPUTThresholdV float64 `json:"gput_threshold_v"`
	GPOTThresholdV float64 `json:"gpot_threshold_v"`

	Faults []int   `json:"fault_values"` // 故障位, 长度不固定
	VTRefV float64 `json:"vtref_v"`
}
