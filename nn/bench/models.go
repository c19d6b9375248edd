package bench

import (
	"fmt"

	"lenet_lib/nn"
	"lenet_lib/nn/layers"
)

// BuiltNet holds a model and the length of the input it expects.
type BuiltNet struct {
	Name     string
	Net      *nn.Network
	InputDim int
}

// BuildLeNet5 is the LeNet-5 used for training.
func BuildLeNet5() (BuiltNet, error) {
	net, err := nn.NewLeNet5()
	if err != nil {
		return BuiltNet{}, err
	}
	return BuiltNet{Name: "lenet5", Net: net, InputDim: 28 * 28}, nil
}

// BuildMNISTFC is a 784-128-32-10 fully connected baseline.
func BuildMNISTFC() (BuiltNet, error) {
	dims := []int{784, 128, 32, 10}
	var ls []nn.Layer
	for i := 0; i+1 < len(dims); i++ {
		fc, err := layers.NewFullyConnected(dims[i], dims[i+1])
		if err != nil {
			return BuiltNet{}, err
		}
		ls = append(ls, fc)
		if i+2 < len(dims) {
			ls = append(ls, layers.NewSigmoid())
		}
	}
	return BuiltNet{Name: "mnistfc", Net: nn.NewNetwork(ls...), InputDim: dims[0]}, nil
}

// BuildNet looks a model up by name.
func BuildNet(name string) (BuiltNet, error) {
	switch name {
	case "lenet5", "lenet":
		return BuildLeNet5()
	case "mnistfc":
		return BuildMNISTFC()
	default:
		return BuiltNet{}, fmt.Errorf("unknown model %q", name)
	}
}
