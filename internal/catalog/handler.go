package catalog

import (
	"context"
	"fmt"
	"reflect"

	"github.com/loykin/mongorun/internal/docstore"
)

// Script and verification signatures accepted by Group.Script and Group.Verify.
type (
	DatabaseScript   func(ctx context.Context, db docstore.Database) error
	CollectionScript func(ctx context.Context, coll docstore.Collection) error
	DatabaseCheck    func(ctx context.Context, db docstore.Database) (bool, error)
	CollectionCheck  func(ctx context.Context, coll docstore.Collection) (bool, error)
)

// Handle is the kind of store handle a routine receives.
type Handle int

const (
	HandleDatabase Handle = iota + 1
	HandleCollection
)

func (h Handle) String() string {
	switch h {
	case HandleDatabase:
		return "database"
	case HandleCollection:
		return "collection"
	}
	return "unknown"
}

var (
	contextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	databaseType   = reflect.TypeOf((*docstore.Database)(nil)).Elem()
	collectionType = reflect.TypeOf((*docstore.Collection)(nil)).Elem()
)

type scriptFunc func(ctx context.Context, db docstore.Database, coll docstore.Collection) error

type checkFunc func(ctx context.Context, db docstore.Database, coll docstore.Collection) (bool, error)

func adaptScript(fn any) (scriptFunc, Handle, error) {
	if isNilFunc(fn) {
		return nil, 0, fmt.Errorf("script function is nil")
	}
	switch f := fn.(type) {
	case DatabaseScript:
		return dbScript(f), HandleDatabase, nil
	case func(context.Context, docstore.Database) error:
		return dbScript(f), HandleDatabase, nil
	case CollectionScript:
		return collScript(f), HandleCollection, nil
	case func(context.Context, docstore.Collection) error:
		return collScript(f), HandleCollection, nil
	}
	return nil, 0, fmt.Errorf("unsupported signature %s: want func(context.Context, docstore.Database) error or func(context.Context, docstore.Collection) error", describe(fn))
}

func dbScript(f func(context.Context, docstore.Database) error) scriptFunc {
	return func(ctx context.Context, db docstore.Database, _ docstore.Collection) error { return f(ctx, db) }
}

func collScript(f func(context.Context, docstore.Collection) error) scriptFunc {
	return func(ctx context.Context, _ docstore.Database, coll docstore.Collection) error { return f(ctx, coll) }
}

// errNotBool marks a verification routine with a valid handle parameter but
// no boolean result.
type errNotBool struct{ sig string }

func (e errNotBool) Error() string {
	return fmt.Sprintf("verification routine %s does not return (bool, error)", e.sig)
}

func adaptCheck(fn any) (checkFunc, Handle, error) {
	if isNilFunc(fn) {
		return nil, 0, fmt.Errorf("verification routine is nil")
	}
	switch f := fn.(type) {
	case DatabaseCheck:
		return dbCheck(f), HandleDatabase, nil
	case func(context.Context, docstore.Database) (bool, error):
		return dbCheck(f), HandleDatabase, nil
	case CollectionCheck:
		return collCheck(f), HandleCollection, nil
	case func(context.Context, docstore.Collection) (bool, error):
		return collCheck(f), HandleCollection, nil
	}
	if acceptsHandle(fn) {
		return nil, 0, errNotBool{sig: describe(fn)}
	}
	return nil, 0, fmt.Errorf("unsupported signature %s: want func(context.Context, docstore.Database) (bool, error) or func(context.Context, docstore.Collection) (bool, error)", describe(fn))
}

func dbCheck(f func(context.Context, docstore.Database) (bool, error)) checkFunc {
	return func(ctx context.Context, db docstore.Database, _ docstore.Collection) (bool, error) { return f(ctx, db) }
}

func collCheck(f func(context.Context, docstore.Collection) (bool, error)) checkFunc {
	return func(ctx context.Context, _ docstore.Database, coll docstore.Collection) (bool, error) { return f(ctx, coll) }
}

// acceptsHandle reports whether fn takes (context.Context, Database|Collection).
func acceptsHandle(fn any) bool {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != 2 {
		return false
	}
	if t.In(0) != contextType {
		return false
	}
	return t.In(1) == databaseType || t.In(1) == collectionType
}

func isNilFunc(fn any) bool {
	if fn == nil {
		return true
	}
	v := reflect.ValueOf(fn)
	return v.Kind() == reflect.Func && v.IsNil()
}

func describe(fn any) string {
	if fn == nil {
		return "<nil>"
	}
	return reflect.TypeOf(fn).String()
}
