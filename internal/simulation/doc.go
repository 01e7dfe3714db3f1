// Package simulation provides a campaign-level test harness for the
// deposition controller.
//
// Scenarios run the real Controller, Engine, checkpoint and ledger
// wiring. Only the molecular dynamics engine is replaced, by an
// in-process stand-in whose behaviour is scripted iteration by
// iteration: deposit, scatter, crash or hang. Each scenario gets an
// isolated campaign root via t.TempDir() and t.Chdir, so tests never
// touch a real working directory.
//
// Usage:
//
//	func TestFilmGrowth(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "film-growth",
//	        Script: []simulation.Step{simulation.StepDeposit, simulation.StepScatter},
//	    })
//	    simulation.AssertOutcome(t, result, campaign.OutcomeComplete)
//	}
package simulation
