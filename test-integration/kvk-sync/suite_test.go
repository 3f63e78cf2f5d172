package integration

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestKvKSyncIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "kvk-sync Integration Suite")
}
