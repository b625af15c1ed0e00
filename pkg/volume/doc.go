/*
Package volume lays out container data on a datanode disk.

Every container gets its own directory, grouped 512 to a parent so no
single directory grows without bound:

	<base>/<clusterID>/current/
	    containerDir0/
	        1/
	            metadata/
	                1.container            descriptor (YAML)
	                1-dn-container.db      block table (bbolt)
	            chunks/
	                <localID>.block        chunk data
	    containerDir1/
	        512/
	        ...

The cluster id level keeps volumes from different clusters apart on a
shared disk. A datanode lists the volume on startup and reopens every
container that has a descriptor.

Create refuses to reuse an existing container directory. Delete is
idempotent.
*/
package volume
