// Package sensor converts raw analog samples into calibrated moisture
// percentages.
//
// The probe is inverted: a dry probe reads close to MaxRaw and a wet one
// close to zero.
package sensor
