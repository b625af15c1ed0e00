package types

import (
	"testing"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIDCompare(t *testing.T) {
	a := BlockID{ContainerID: 1, LocalID: 5}

	assert.Equal(t, 0, a.Compare(BlockID{ContainerID: 1, LocalID: 5}))
	assert.Equal(t, -1, a.Compare(BlockID{ContainerID: 1, LocalID: 6}))
	assert.Equal(t, 1, a.Compare(BlockID{ContainerID: 1, LocalID: 4}))
	assert.Equal(t, -1, a.Compare(BlockID{ContainerID: 2, LocalID: 0}))
	assert.Equal(t, "conID: 1 locID: 5", a.String())
}

func TestBlockDataMetadata(t *testing.T) {
	b := NewBlockData(BlockID{ContainerID: 1, LocalID: 1})

	require.NoError(t, b.AddMetadata("volume", "analytics"))
	require.NoError(t, b.AddMetadata("owner", "hdfs"))
	err := b.AddMetadata("owner", "root")
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, "hdfs", b.Metadata["owner"])
	assert.Equal(t, []string{"owner", "volume"}, b.MetadataKeys())
}

func TestBlockDataSizeAndClone(t *testing.T) {
	b := NewBlockData(BlockID{ContainerID: 1, LocalID: 1})
	b.Chunks = []ChunkInfo{
		{Name: "1.data.0", Offset: 0, Length: 1024},
		{Name: "1.data.1", Offset: 1024, Length: 512},
	}
	require.NoError(t, b.AddMetadata("k", "v"))
	b.BlockCommitSequenceID = 4

	assert.Equal(t, int64(1536), b.Size())

	clone := b.Clone()
	assert.Equal(t, b, clone)

	clone.Chunks[0].Length = 1
	clone.Metadata["k"] = "changed"
	assert.Equal(t, int64(1024), b.Chunks[0].Length)
	assert.Equal(t, "v", b.Metadata["k"])

	var nilBlock *BlockData
	assert.Nil(t, nilBlock.Clone())
}

func TestReplicationConfig(t *testing.T) {
	tests := []struct {
		config   ReplicationConfig
		required int
		quorum   int
		str      string
	}{
		{StandaloneReplication(), 1, 1, "STANDALONE/ONE"},
		{RatisReplication(1), 1, 1, "RATIS/1"},
		{RatisReplication(3), 3, 2, "RATIS/3"},
		{RatisReplication(5), 5, 3, "RATIS/5"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.required, tt.config.RequiredNodes())
			assert.Equal(t, tt.quorum, tt.config.Quorum())
			assert.Equal(t, tt.str, tt.config.String())
		})
	}
}
