package reactive

import "github.com/roach88/reactor/internal/value"

// Replace makes obj hold exactly the fields of data: every field of data is
// assigned, and fields missing from data are deleted. Protected fields and
// transport metadata are left alone.
func Replace(obj *Object, data map[string]any) {
	for _, k := range value.SortedKeys(data) {
		obj.Set(k, data[k])
	}
	for _, k := range obj.Keys() {
		if _, ok := data[k]; ok {
			continue
		}
		if isProtected(obj.protected, k) || IsMeta(k) {
			continue
		}
		obj.Delete(k)
	}
}
