package db

import (
	"go.mongodb.org/mongo-driver/bson"
)

// FilterBuilder helps build MongoDB filters fluently
type FilterBuilder struct {
	filter bson.M
	and    []bson.M
}

// NewFilter creates a new FilterBuilder
func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq adds an equality condition. On an array field it matches documents whose
// array contains value.
func (f *FilterBuilder) Eq(field string, value interface{}) *FilterBuilder {
	f.filter[field] = value
	return f
}

// Ne adds a not-equal condition. On an array field it matches documents whose
// array does not contain value.
func (f *FilterBuilder) Ne(field string, value interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$ne": value}
	return f
}

// In adds an $in condition (value in array)
func (f *FilterBuilder) In(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// All requires an array field to contain every value.
func (f *FilterBuilder) All(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$all": values}
	return f
}

// HasOtherThan requires an array field to hold at least one element different
// from value. Repeated calls on the same field are combined with AND.
func (f *FilterBuilder) HasOtherThan(field string, value interface{}) *FilterBuilder {
	return f.And(bson.M{field: bson.M{"$elemMatch": bson.M{"$ne": value}}})
}

// And combines extra conditions with AND
func (f *FilterBuilder) And(filters ...bson.M) *FilterBuilder {
	f.and = append(f.and, filters...)
	return f
}

// Or adds a disjunction of conditions, combined with the rest using AND
func (f *FilterBuilder) Or(filters ...bson.M) *FilterBuilder {
	if len(filters) > 0 {
		f.and = append(f.and, bson.M{"$or": filters})
	}
	return f
}

// Build returns the final bson.M filter
func (f *FilterBuilder) Build() bson.M {
	out := make(bson.M, len(f.filter)+1)
	for k, v := range f.filter {
		out[k] = v
	}
	if len(f.and) > 0 {
		out["$and"] = append([]bson.M(nil), f.and...)
	}
	return out
}
