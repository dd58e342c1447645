package foc_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFoc(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Foc Suite")
}
