package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

type dispatchState struct {
	Req    contractx.Request
	Route  Route
	Output json.RawMessage
}

func dispatchNode(c contractx.Capability) string {
	return "dispatch_" + string(c)
}

// compileDispatchGraph wires prepare -> exactly one dispatch node -> verify_output.
func compileDispatchGraph(
	ctx context.Context,
	specialists map[contractx.Capability]contractx.Specialist,
	verifier *OutputVerifier,
) (compose.Runnable[*dispatchState, contractx.Result], error) {
	graph := compose.NewGraph[*dispatchState, contractx.Result]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			if in == nil {
				return nil, fmt.Errorf("%w: dispatch state is nil", contractx.ErrValidation)
			}
			if _, ok := specialists[in.Route.Capability]; !ok {
				return nil, fmt.Errorf("%w: no specialist for capability %q", contractx.ErrValidation, in.Route.Capability)
			}
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add dispatch prepare node: %w", err)
	}

	if err := graph.AddLambdaNode("verify_output",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (contractx.Result, error) {
			if err := verifier.Verify(in.Route.Capability, in.Output); err != nil {
				return contractx.Result{}, err
			}
			return contractx.Result{
				Capability: in.Route.Capability,
				Rule:       in.Route.Rule,
				Output:     in.Output,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add verify node: %w", err)
	}

	endNodes := make(map[string]bool, len(specialists))
	for capability, specialist := range specialists {
		name := dispatchNode(capability)
		if err := graph.AddLambdaNode(name,
			compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
				out, err := specialist.Run(ctx, in.Req)
				if err != nil {
					return nil, err
				}
				in.Output = out
				return in, nil
			}),
		); err != nil {
			return nil, fmt.Errorf("add %s node: %w", name, err)
		}
		if err := graph.AddEdge(name, "verify_output"); err != nil {
			return nil, fmt.Errorf("add edge %s->verify_output: %w", name, err)
		}
		endNodes[name] = true
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *dispatchState) (string, error) {
			return dispatchNode(in.Route.Capability), nil
		},
		endNodes,
	)
	if err := graph.AddBranch("prepare", branch); err != nil {
		return nil, fmt.Errorf("add dispatch branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prepare"); err != nil {
		return nil, fmt.Errorf("add edge start->prepare: %w", err)
	}
	if err := graph.AddEdge("verify_output", compose.END); err != nil {
		return nil, fmt.Errorf("add edge verify_output->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.dispatch_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch graph: %w", err)
	}
	return runner, nil
}
