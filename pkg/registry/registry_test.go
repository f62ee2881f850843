package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udfix/pkg/contract"
	"udfix/plugins/corrector/fusion"
	wfs "udfix/plugins/writer/filesystem"
)

// TestStrictDecode 验证严格解码逻辑。
func TestStrictDecode(t *testing.T) {
	type opt struct {
		A int    `mapstructure:"a"`
		B string `mapstructure:"b"`
	}
	var o opt
	require.NoError(t, strictDecode(nil, &o))
	assert.Zero(t, o.A)

	require.NoError(t, strictDecode(Options{"a": "7", "b": "x"}, &o), "弱类型输入应被接受")
	assert.Equal(t, 7, o.A)

	err := strictDecode(Options{"a": 1, "c": 2}, &o)
	require.Error(t, err, "未知键应报错")
	assert.Contains(t, err.Error(), "c")
}

// TestFactories 遍历注册表入口：空选项可构造，未知键被拒绝。
func TestFactories(t *testing.T) {
	type factory func(Options) (any, error)
	all := map[string]factory{}
	for n, f := range Reader {
		all["reader/"+n] = func(o Options) (any, error) { return f(o) }
	}
	for n, f := range Splitter {
		all["splitter/"+n] = func(o Options) (any, error) { return f(o) }
	}
	for n, f := range Corrector {
		all["corrector/"+n] = func(o Options) (any, error) { return f(o) }
	}
	for n, f := range Assembler {
		all["assembler/"+n] = func(o Options) (any, error) { return f(o) }
	}
	for n, f := range Writer {
		all["writer/"+n] = func(o Options) (any, error) { return f(o) }
	}
	require.Len(t, all, 7)
	for name, f := range all {
		t.Run(name, func(t *testing.T) {
			v, err := f(nil)
			require.NoError(t, err)
			assert.NotNil(t, v)
			_, err = f(Options{"x": 1})
			assert.Error(t, err, "未知键应报错")
		})
	}
}

func TestCorrectorFusionOptions(t *testing.T) {
	c, err := Corrector["fusion"](Options{
		"fusions": []any{
			map[string]any{"form": "ao", "conjunction": "a", "determiner": "o"},
		},
	})
	require.NoError(t, err)
	fc, ok := c.(*fusion.Corrector)
	require.True(t, ok)
	f, ok := fc.Table().Lookup("ao")
	require.True(t, ok)
	assert.Equal(t, contract.DefaultDetTag, f.UPOS, "缺省标注应补齐")
	_, ok = fc.Table().Lookup("ea")
	assert.False(t, ok, "显式融合表替换默认表")

	_, err = Corrector["fusion"](Options{"fusions": []any{map[string]any{"form": ""}}})
	assert.Error(t, err)
}

func TestWriterOptions(t *testing.T) {
	dir := t.TempDir()
	w, err := Writer["fs"](Options{"output_dir": dir, "suffix": "-ok", "atomic": false})
	require.NoError(t, err)
	fw, ok := w.(*wfs.FS)
	require.True(t, ok)
	p, err := fw.Target("corpus/a.conllu")
	require.NoError(t, err)
	assert.Contains(t, p, "a-ok.conllu")

	_, err = Writer["fs"](Options{"suffix": "x/y"})
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}
