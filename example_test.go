package tendril_test

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
)

func Example() {
	b := dsl.New("order")
	b.Add("start").Start().Go("approve")
	b.Add("approve").WorkItem("Approve").Output("approved", "approved").Go("done")
	b.Add("cancel").Boundary("approve").On("Cancel").Interrupting().Go("cancelled")
	b.Add("done").End()
	b.Add("cancelled").End()

	def, err := b.Build()
	if err != nil {
		fmt.Println(err)
		return
	}

	sess, err := tendril.New([]*domain.ProcessDefinition{def})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer sess.Close()

	ctx := context.Background()
	pi, _ := sess.StartProcess(ctx, "order", nil)
	items := pi.WorkItems()
	fmt.Println(pi.State(), items[0].Name)

	_ = sess.CompleteWorkItem(ctx, pi.ID(), items[0].ID, map[string]any{"approved": true})
	approved, _ := pi.Variable("approved")
	fmt.Println(pi.State(), approved, pi.IsNodeCompleted("done"))
	// Output:
	// active Approve
	// completed true true
}
