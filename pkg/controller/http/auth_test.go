package http_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	controller "github.com/wavelength-chat/wavelength/pkg/controller/http"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

func TestSessionIssuer(t *testing.T) {
	issuer, err := controller.NewSessionIssuer([]byte("secret-a"), time.Hour)
	gt.NoError(t, err).Required()

	token, err := issuer.Issue(&model.User{ID: "u1", Username: "ada"})
	gt.NoError(t, err).Required()

	userID, err := issuer.Verify(token)
	gt.NoError(t, err).Required()
	gt.Value(t, userID).Equal(types.UserID("u1"))

	// A token signed with another secret fails verification
	other, err := controller.NewSessionIssuer([]byte("secret-b"), time.Hour)
	gt.NoError(t, err).Required()
	_, err = other.Verify(token)
	gt.Error(t, err)

	_, err = issuer.Verify("not-a-token")
	gt.Error(t, err)

	_, err = controller.NewSessionIssuer(nil, time.Hour)
	gt.Error(t, err)
}
