package runtime

// Handler runs one claimed session to a terminal state. Implementations
// report failures through ctx.Fail rather than the return value; a non-nil
// error is reserved for infrastructure problems the worker should log.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}
