/*
Package dsl provides a Go DSL for programmatically constructing process
definitions, and a YAML loader producing the same definitions.

# Builder

	b := dsl.New("order")
	b.Add("start").Start().Go("approve")
	b.Add("approve").WorkItem("Approve").Output("approved", "approved").Go("done")
	b.Add("deadline").Boundary("approve").Timer(24 * time.Hour).Interrupting().Go("expired")
	b.Add("done").End()
	b.Add("expired").End()

	def, err := b.Build()

# YAML

	id: order
	nodes:
	  - id: start
	    kind: start
	    next: approve
	  - id: approve
	    kind: work_item
	    work: Approve
	    next: done
	  - id: deadline
	    kind: boundary_event
	    attached_to: approve
	    event: Timer
	    delay: 24h
	    cancel_activity: true
	    next: expired
	  - id: done
	    kind: end
	  - id: expired
	    kind: end
*/
package dsl
