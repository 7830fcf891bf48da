package reactor

// Field is a typed cell over one property of an Object.
type Field[T any] struct {
	obj  *Object
	name string
}

// NewField binds name on o and writes initial to it.
func NewField[T any](o *Object, name string, initial T) Field[T] {
	f := BindField[T](o, name)
	f.Set(initial)
	return f
}

// BindField binds name on o without writing.
func BindField[T any](o *Object, name string) Field[T] {
	return Field[T]{obj: o, name: name}
}

// Get reads the value, tracked through tr. A missing property or a value of
// another type reads as the zero value, so a Field[int] whose property was
// overwritten with a float64 reads 0. Writers that coerce numbers, such as
// template handlers, keep the stored kind.
func (f Field[T]) Get(tr *Tracker) T {
	v, _ := f.obj.Get(tr, f.name)
	t, _ := v.(T)
	return t
}

func (f Field[T]) Set(value T) {
	f.obj.Set(f.name, value)
}

// Update writes fn applied to the current value; the read is untracked.
func (f Field[T]) Update(fn func(T) T) {
	f.Set(fn(f.Get(nil)))
}

func (f Field[T]) Delete() bool {
	return f.obj.Delete(f.name)
}

func (f Field[T]) Name() string {
	return f.name
}

func (f Field[T]) Object() *Object {
	return f.obj
}

func (f Field[T]) Key() StateKey {
	return KeyOf(f.obj, f.name)
}
