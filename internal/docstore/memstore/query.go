package memstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "$and":
			for _, sub := range subFilters(e.Value) {
				if !matches(doc, sub) {
					return false
				}
			}
		case "$or":
			hit := false
			for _, sub := range subFilters(e.Value) {
				if matches(doc, sub) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		default:
			val, found := lookup(doc, e.Key)
			if !matchField(val, found, e.Value) {
				return false
			}
		}
	}
	return true
}

func subFilters(v any) []bson.D {
	arr, ok := v.(primitive.A)
	if !ok {
		return nil
	}
	out := make([]bson.D, 0, len(arr))
	for _, item := range arr {
		if d, ok := asD(item); ok {
			out = append(out, d)
		}
	}
	return out
}

func asD(v any) (bson.D, bool) {
	switch t := v.(type) {
	case bson.D:
		return t, true
	case bson.M:
		d := make(bson.D, 0, len(t))
		for k, v := range t {
			d = append(d, bson.E{Key: k, Value: v})
		}
		return d, true
	}
	return nil, false
}

func isOperatorDoc(v any) (bson.D, bool) {
	d, ok := asD(v)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchField(val any, found bool, cond any) bool {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		return equalOrContains(val, found, cond)
	}
	for _, op := range ops {
		switch op.Key {
		case "$eq":
			if !equalOrContains(val, found, op.Value) {
				return false
			}
		case "$ne":
			if equalOrContains(val, found, op.Value) {
				return false
			}
		case "$exists":
			if found != truthy(op.Value) {
				return false
			}
		case "$in":
			if !inList(val, found, op.Value) {
				return false
			}
		case "$nin":
			if inList(val, found, op.Value) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !found {
				return false
			}
			c, ok := compare(val, op.Value)
			if !ok {
				return false
			}
			switch op.Key {
			case "$gt":
				if c <= 0 {
					return false
				}
			case "$gte":
				if c < 0 {
					return false
				}
			case "$lt":
				if c >= 0 {
					return false
				}
			case "$lte":
				if c > 0 {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

func inList(val any, found bool, list any) bool {
	arr, ok := list.(primitive.A)
	if !ok {
		return false
	}
	for _, candidate := range arr {
		if equalOrContains(val, found, candidate) {
			return true
		}
	}
	return false
}

// equalOrContains treats a nil condition as matching missing fields and
// matches array fields when any element equals the condition.
func equalOrContains(val any, found bool, cond any) bool {
	if cond == nil {
		return !found || val == nil
	}
	if !found {
		return false
	}
	if arr, ok := val.(primitive.A); ok {
		if _, condIsArray := cond.(primitive.A); !condIsArray {
			for _, item := range arr {
				if valuesEqual(item, cond) {
					return true
				}
			}
			return false
		}
	}
	return valuesEqual(val, cond)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	da, okA := asD(a)
	db, okB := asD(b)
	if okA && okB {
		return reflect.DeepEqual(toSortedM(da), toSortedM(db))
	}
	return reflect.DeepEqual(a, b)
}

func toSortedM(d bson.D) map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compare orders numbers, strings, booleans and timestamps. ok is false when
// the operands are not mutually comparable.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case primitive.DateTime:
		y, ok := asTime(b)
		if !ok {
			return 0, false
		}
		return x.Time().Compare(y), true
	case time.Time:
		y, ok := asTime(b)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Hex(), y.Hex()), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case bson.M:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range node {
				if e.Key == part {
					cur = e.Value
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

// equalityValue returns the plain or $eq value filter pins field to.
func equalityValue(filter bson.D, field string) (any, bool) {
	for _, e := range filter {
		if e.Key != field {
			continue
		}
		if ops, ok := isOperatorDoc(e.Value); ok {
			for _, op := range ops {
				if op.Key == "$eq" {
					return op.Value, true
				}
			}
			return nil, false
		}
		return e.Value, true
	}
	return nil, false
}

func applyUpdate(doc bson.M, update bson.D) error {
	if len(update) == 0 {
		return fmt.Errorf("memstore: update document must not be empty")
	}
	for _, op := range update {
		fields, ok := asD(op.Value)
		if !ok {
			return fmt.Errorf("memstore: update operator %s requires a document", op.Key)
		}
		for _, f := range fields {
			if f.Key == "_id" {
				return fmt.Errorf("memstore: performing an update on the path '_id' would modify the immutable field '_id'")
			}
			switch op.Key {
			case "$set":
				setPath(doc, f.Key, f.Value)
			case "$unset":
				unsetPath(doc, f.Key)
			case "$inc":
				delta, ok := toFloat(f.Value)
				if !ok {
					return fmt.Errorf("memstore: cannot increment %s by a non-numeric value", f.Key)
				}
				cur, found := lookup(doc, f.Key)
				if !found {
					setPath(doc, f.Key, f.Value)
					continue
				}
				setPath(doc, f.Key, addNumbers(cur, f.Value, delta))
			default:
				return fmt.Errorf("memstore: unsupported update operator %s", op.Key)
			}
		}
	}
	return nil
}

func addNumbers(cur, raw any, delta float64) any {
	switch c := cur.(type) {
	case int32:
		if d, ok := raw.(int32); ok {
			return c + d
		}
		if d, ok := raw.(int64); ok {
			return int64(c) + d
		}
	case int64:
		switch d := raw.(type) {
		case int32:
			return c + int64(d)
		case int64:
			return c + d
		}
	}
	f, _ := toFloat(cur)
	return f + delta
}

func parentOf(doc bson.M, path string, create bool) (bson.M, string) {
	parts := strings.Split(path, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part]
		switch child := next.(type) {
		case bson.M:
			node = child
			continue
		case bson.D:
			m := bson.M{}
			for _, e := range child {
				m[e.Key] = e.Value
			}
			node[part] = m
			node = m
			continue
		}
		if ok || !create {
			return nil, ""
		}
		m := bson.M{}
		node[part] = m
		node = m
	}
	return node, parts[len(parts)-1]
}

func setPath(doc bson.M, path string, val any) {
	parent, key := parentOf(doc, path, true)
	parent[key] = val
}

func unsetPath(doc bson.M, path string) {
	parent, key := parentOf(doc, path, false)
	if parent != nil {
		delete(parent, key)
	}
}

func sortDocs(docs []bson.M, order bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range order {
			dir := 1
			if f, ok := toFloat(key.Value); ok && f < 0 {
				dir = -1
			}
			a, okA := lookup(docs[i], key.Key)
			b, okB := lookup(docs[j], key.Key)
			switch {
			case !okA && !okB:
				continue
			case !okA:
				return dir > 0
			case !okB:
				return dir < 0
			}
			c, ok := compare(a, b)
			if !ok || c == 0 {
				continue
			}
			return c*dir < 0
		}
		return false
	})
}
