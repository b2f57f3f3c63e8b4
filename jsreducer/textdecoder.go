package jsreducer

import "github.com/dop251/goja"

// registerTextDecoder installs a minimal `TextDecoder` constructor so
// reducer scripts can decode a record's file contents (exposed as
// ArrayBuffers) the same way they would in a browser or Node runtime:
// `new TextDecoder('utf-8').decode(record.files.text)`. The original
// Duktape host runs on CESU-8 internally and transcodes at its FFI
// boundary (spec.md §9's callout); goja's strings are native UTF-16 like
// real ECMAScript, so no such transcoding step exists here -- decode()
// just treats the buffer as UTF-8 and lets goja's string type do the
// rest.
func registerTextDecoder(vm *goja.Runtime) {
	vm.Set("TextDecoder", func(call goja.ConstructorCall) *goja.Object {
		this := call.This
		_ = this.Set("decode", func(inner goja.FunctionCall) goja.Value {
			arg := inner.Argument(0)
			if goja.IsUndefined(arg) || goja.IsNull(arg) {
				return vm.ToValue("")
			}
			if ab, ok := arg.Export().(goja.ArrayBuffer); ok {
				return vm.ToValue(string(ab.Bytes()))
			}
			return vm.ToValue("")
		})
		return nil
	})
}
