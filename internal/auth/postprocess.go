package auth

// ObjectPostProcessor is the extension point through which the embedding
// framework can decorate or register every object constructed during a
// configuration pass (authenticators, context sources, embedded servers,
// providers) without the configurers knowing the concrete hook behavior.
//
// Implementations must return an object assignable to the input's type;
// returning the input unchanged is the common case.
type ObjectPostProcessor interface {
	PostProcess(o any) any
}

// ObjectPostProcessorFunc adapts a func to the ObjectPostProcessor interface.
type ObjectPostProcessorFunc func(o any) any

// PostProcess implements ObjectPostProcessor.
func (f ObjectPostProcessorFunc) PostProcess(o any) any {
	return f(o)
}

// NopPostProcessor returns a post-processor that returns every object
// unchanged. It is the default when the integrator supplies none.
func NopPostProcessor() ObjectPostProcessor {
	return ObjectPostProcessorFunc(func(o any) any { return o })
}
