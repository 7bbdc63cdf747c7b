package tools

import "github.com/parleylabs/parley/internal/docs"

// RegisterBuiltins registers the built-in toolset in its canonical
// order. The docs index may be nil; search_documents then answers with
// its placeholder output.
func RegisterBuiltins(reg *Registry, index *docs.Index) error {
	builtins := []Tool{
		NewSearchWebTool(),
		NewSearchDocumentsTool(index),
		NewFetchWeatherTool(),
		NewCalculateMathTool(),
		NewGetCurrentTimeTool(),
		NewConvertCurrencyTool(),
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
