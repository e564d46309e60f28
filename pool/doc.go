// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-net: a fixed-size segment arena backing every
// connection's receive and send buffers, and a bounded LIFO pool for the
// I/O operation contexts bound to those segments.
package pool
