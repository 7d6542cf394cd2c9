package loyalty

import "errors"

var ErrInvalidPolicy = errors.New("loyalty: invalid reward policy")
