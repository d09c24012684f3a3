// Package config defines the solver tuning settings and loads them from
// HCL files. Settings control which registered solution runs and how the
// engine tiles it: block sizes per level, the scalar-reference override,
// and thread counts. Everything has a default; an empty file is valid.
package config
