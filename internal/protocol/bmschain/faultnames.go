package bmschain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// 故障名来源: 固件中负责串口输出的 C 源文件
const (
	SourceFileName   = "AEK_POW_BMS63CHAIN_app_mng.c"
	ProjectDirName   = "SPC58EC - AEK_POW_BMS63EN_SOC_Est_SingleAccess_CHAIN_GUI_application for discovery"
	serialStepFunc   = "AEK_POW_BMS63CHAIN_app_serialStep_GUI"
	sourceSubdirName = "source"
)

var (
	serialStepRe = regexp.MustCompile(`(?s)void\s+` + serialStepFunc + `\s*\([^)]*\)\s*\{(.*?)sendMessage\("` + EndMarker + `"\)`)
	fastDiagRe   = regexp.MustCompile(`AEK_POW_BMS63CHAIN_fastDiag\[[^\]]+\]\.([A-Za-z0-9_]+)`)
)

// FaultColumnNames 生成 count 个故障列名。
// 第 i 列有候选名时为 fault_<三位序号>_<去前缀名>, 否则为 fault_<三位序号>。
func FaultColumnNames(count int, names []string) []string {
	if count < 0 {
		count = 0
	}
	cols := make([]string, count)
	for i := range cols {
		if i < len(names) {
			cols[i] = fmt.Sprintf("fault_%03d_%s", i+1, strings.TrimPrefix(names[i], FaultNamePrefix))
		} else {
			cols[i] = fmt.Sprintf("fault_%03d", i+1)
		}
	}
	return cols
}

// ExtractFaultNames 从 C 源码中按出现顺序提取 fastDiag 成员名。
// 只扫描串口输出函数体 (到 sendMessage("ENDData") 为止), 找不到该函数时扫描全文。
// 以 // 开头的注释行被跳过。
func ExtractFaultNames(r io.Reader) ([]string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	body := string(src)
	if m := serialStepRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var names []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "//") {
			continue
		}
		for _, m := range fastDiagRe.FindAllStringSubmatch(line, -1) {
			names = append(names, m[1])
		}
	}
	return names, sc.Err()
}

// LoadFaultNames 读取 C 源文件并提取故障名; 文件不存在时返回 nil, nil
func LoadFaultNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ExtractFaultNames(f)
}

// DiscoverSourceFile 在常见的工程目录布局中查找 C 源文件。
// 都不存在时返回第一个候选之后的代表路径, 以便用于提示信息。
func DiscoverSourceFile(baseDirs ...string) (string, bool) {
	rel := filepath.Join(sourceSubdirName, SourceFileName)
	var candidates []string
	for _, dir := range baseDirs {
		if dir == "" {
			continue
		}
		candidates = append(candidates,
			filepath.Join(dir, ProjectDirName, rel),
			filepath.Join(filepath.Dir(dir), ProjectDirName, rel),
			filepath.Join(filepath.Dir(dir), rel),
			filepath.Join(dir, rel),
		)
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	if len(candidates) > 1 {
		return candidates[1], false
	}
	return rel, false
}
