// Package rknn classifies frames on a Rockchip NPU with go-rknnlite.
//
// The implementation is only compiled with the rknn build tag because it
// links against librknnrt. Without the tag the package is empty and the
// kiosk falls back to the ONNX backend.
package rknn
