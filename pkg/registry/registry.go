package registry

import (
	"github.com/go-viper/mapstructure/v2"

	"udfix/pkg/contract"
	asmconllu "udfix/plugins/assembler/conllu"
	"udfix/plugins/corrector/fusion"
	rfs "udfix/plugins/reader/filesystem"
	splconllu "udfix/plugins/splitter/conllu"
	wfs "udfix/plugins/writer/filesystem"
	"udfix/plugins/writer/stream"
)

// Options: 组件选项子树（来自配置文件/ENV 的原样键值）。
type Options = map[string]any

// strictDecode: 将选项子树解码进结构体，拒绝未知键。
func strictDecode(raw Options, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           v,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// NewReader 工厂签名：接收原样选项子树。
type NewReader func(raw Options) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样选项子树。
type NewSplitter func(raw Options) (contract.Splitter, error)

// NewCorrector 工厂签名：接收原样选项子树。
type NewCorrector func(raw Options) (contract.Corrector, error)

// NewAssembler 工厂签名：接收原样选项子树。
type NewAssembler func(raw Options) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样选项子树。
type NewWriter func(raw Options) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw Options) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// conllu: 空行边界流式切分
	"conllu": func(raw Options) (contract.Splitter, error) {
		var opts splconllu.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return splconllu.New(&opts), nil
	},
}

// Corrector 工厂注册表。
var Corrector = map[string]NewCorrector{
	// fusion: 融合 token 拆分 + 重编号
	"fusion": func(raw Options) (contract.Corrector, error) {
		var opts fusion.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return fusion.New(&opts)
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	"conllu": func(raw Options) (contract.Assembler, error) {
		var opts asmconllu.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return asmconllu.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（-fixed 后缀，原子替换可配置）
	"fs": func(raw Options) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// stdout: 全部产物顺序写到标准输出
	"stdout": func(raw Options) (contract.Writer, error) {
		var opts stream.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return stream.NewStdout(&opts), nil
	},
	// discard: 试运行，仅统计不落盘
	"discard": func(raw Options) (contract.Writer, error) {
		var opts stream.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return stream.NewDiscard(&opts), nil
	},
}
