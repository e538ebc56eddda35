package loader

import (
	"github.com/notwillk/optload/internal/yamlfront"
)

// YAMLParser reads .yaml and .yml files through a yamlfront adapter. A new
// adapter is built for every parse so callbacks registered by one setup
// never leak into another loader.
type YAMLParser struct {
	Options yamlfront.Options
	Setup   []func(*yamlfront.YAML)
}

func (*YAMLParser) Format() Format       { return FormatYAML }
func (*YAMLParser) Extensions() []string { return []string{"yaml", "yml"} }

func (p *YAMLParser) Parse(data []byte) (any, error) {
	y, err := yamlfront.New(p.Options)
	if err != nil {
		return nil, err
	}
	for _, fn := range p.Setup {
		fn(y)
	}
	return y.Parse(data, yamlfront.ParseOptions{Doc: 0})
}
