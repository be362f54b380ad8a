// Package normalize aligns long tables on month-start dates.
//
// Sub-annual detail is never invented: a quarterly value is repeated over its
// three months and an annual value over its twelve. Daily series are reduced
// to the mean of the month's non-null observations, and event series such as
// rating actions hold each value until the next event.
//
// Before conversion, repeated observations for the same country and source
// period are collapsed by a Policy. KeepFirst is the default; conflicting
// repeats are always counted and logged, and FailOnConflict turns them into
// an error.
package normalize
