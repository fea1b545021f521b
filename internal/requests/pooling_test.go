package requests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPooling(t *testing.T) {
	cases := []struct {
		name        string
		prePooled   bool
		postPooled  bool
		sameProject bool
		newProject  bool
		want        PoolingCase
		wantErr     bool
	}{
		{
			name:        "sole PI renews own project",
			sameProject: true,
			want:        UnpooledToUnpooled,
		},
		{
			name:       "sole PI joins a pooled project",
			postPooled: true,
			want:       UnpooledToPooled,
		},
		{
			name:        "pooled PI stays put",
			prePooled:   true,
			postPooled:  true,
			sameProject: true,
			want:        PooledToPooledSame,
		},
		{
			name:       "pooled PI moves to another pooled project",
			prePooled:  true,
			postPooled: true,
			want:       PooledToPooledDifferent,
		},
		{
			name:      "pooled PI returns to an existing project of their own",
			prePooled: true,
			want:      PooledToUnpooledOld,
		},
		{
			name:       "pooled PI breaks off onto a new project",
			prePooled:  true,
			newProject: true,
			want:       PooledToUnpooledNew,
		},
		{
			name:       "sole PI breaks off onto a new project",
			newProject: true,
			want:       PooledToUnpooledNew,
		},
		{
			name:       "new project decides before post pooledness",
			prePooled:  true,
			postPooled: true,
			newProject: true,
			want:       PooledToUnpooledNew,
		},
		{
			name:        "same project cannot change pooledness",
			prePooled:   true,
			sameProject: true,
			wantErr:     true,
		},
		{
			name:        "same project cannot gain pooledness",
			postPooled:  true,
			sameProject: true,
			wantErr:     true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClassifyPooling(
				tc.prePooled, tc.postPooled, tc.sameProject, tc.newProject)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnexpectedPoolingCase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyPoolingDifferentUnpooledProjects(t *testing.T) {
	// A sole PI moving between two existing unpooled projects is not a
	// recognized arrangement; moving to an unpooled project is only
	// valid when the project was created for the request.
	_, err := ClassifyPooling(false, false, false, false)
	assert.ErrorIs(t, err, ErrUnexpectedPoolingCase)
}
