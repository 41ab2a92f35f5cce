package gin

import (
	"testing"

	"github.com/nimburion/apimate/pkg/server/router"
	"github.com/nimburion/apimate/pkg/server/router/contract"
)

func TestGinRouterContract(t *testing.T) {
	contract.Run(t, func() router.Router { return NewRouter() })
}
