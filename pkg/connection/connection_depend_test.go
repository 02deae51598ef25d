// Code generated by dependgen — DO NOT EDIT.
package connection

import "github.com/srgg/testify/depend"

var ManagerSuiteTestRegistry = map[string]func(any){
	"TestConnectRetriesWithLinearBackoff": func(s any) { s.(*ManagerSuite).TestConnectRetriesWithLinearBackoff() },
	"TestConnectExhaustion": func(s any) { s.(*ManagerSuite).TestConnectExhaustion() },
	"TestDialTimeout": func(s any) { s.(*ManagerSuite).TestDialTimeout() },
	"TestCancelledDuringBackoff": func(s any) { s.(*ManagerSuite).TestCancelledDuringBackoff() },
	"TestDeviceNotFound": func(s any) { s.(*ManagerSuite).TestDeviceNotFound() },
	"TestLookupErrorIsWrapped": func(s any) { s.(*ManagerSuite).TestLookupErrorIsWrapped() },
	"TestConcurrentEnsureConnectedDialsOnce": func(s any) { s.(*ManagerSuite).TestConcurrentEnsureConnectedDialsOnce() },
	"TestWriteEncodesFrame": func(s any) { s.(*ManagerSuite).TestWriteEncodesFrame() },
	"TestWriteWithoutResponsePreference": func(s any) { s.(*ManagerSuite).TestWriteWithoutResponsePreference() },
	"TestWriteFailureInvalidatesOnLinkLoss": func(s any) { s.(*ManagerSuite).TestWriteFailureInvalidatesOnLinkLoss() },
	"TestWriteFailureKeepsSessionOnOtherErrors": func(s any) { s.(*ManagerSuite).TestWriteFailureKeepsSessionOnOtherErrors() },
	"TestDeviceInitiatedDisconnect": func(s any) { s.(*ManagerSuite).TestDeviceInitiatedDisconnect() },
	"TestStaleDisconnectEventIgnored": func(s any) { s.(*ManagerSuite).TestStaleDisconnectEventIgnored() },
	"TestDisconnectIsIdempotent": func(s any) { s.(*ManagerSuite).TestDisconnectIsIdempotent() },
	"TestQueuedConnectHonoursCancellation": func(s any) { s.(*ManagerSuite).TestQueuedConnectHonoursCancellation() },
	"TestCloseRefusesToRedial": func(s any) { s.(*ManagerSuite).TestCloseRefusesToRedial() },
	"TestCloseDuringDialDiscardsSession": func(s any) { s.(*ManagerSuite).TestCloseDuringDialDiscardsSession() },
}

var ManagerSuiteTestOrder = []string{
	"TestConnectRetriesWithLinearBackoff",
	"TestConnectExhaustion",
	"TestDialTimeout",
	"TestCancelledDuringBackoff",
	"TestDeviceNotFound",
	"TestLookupErrorIsWrapped",
	"TestConcurrentEnsureConnectedDialsOnce",
	"TestWriteEncodesFrame",
	"TestWriteWithoutResponsePreference",
	"TestWriteFailureInvalidatesOnLinkLoss",
	"TestWriteFailureKeepsSessionOnOtherErrors",
	"TestDeviceInitiatedDisconnect",
	"TestStaleDisconnectEventIgnored",
	"TestDisconnectIsIdempotent",
	"TestQueuedConnectHonoursCancellation",
	"TestCloseRefusesToRedial",
	"TestCloseDuringDialDiscardsSession",
}

var ManagerSuiteDependencies = depend.Depends(func(s any) *depend.Dep {
	dep := new(depend.Dep)
	dep.On("TestWriteFailureInvalidatesOnLinkLoss", "TestWriteEncodesFrame")
	dep.On("TestWriteFailureKeepsSessionOnOtherErrors", "TestWriteEncodesFrame")
	return dep
})

// GeneratedDependConfig returns the dependency configuration for ManagerSuite.
// This method allows ManagerSuite to be used with depend.RunSuite(t, suite).
// DO NOT implement this method manually - it is auto-generated.
func (s *ManagerSuite) GeneratedDependConfig() *depend.SuiteConfig {
	return &depend.SuiteConfig{
		Registry: ManagerSuiteTestRegistry,
		Order:    ManagerSuiteTestOrder,
		Deps:     ManagerSuiteDependencies,
	}
}
