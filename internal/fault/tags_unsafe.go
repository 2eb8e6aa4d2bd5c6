//go:build !safe

package fault

const safeBuild = false
